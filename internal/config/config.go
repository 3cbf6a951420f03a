package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Datastore DatastoreConfig `yaml:"datastore"`
	Redis     RedisConfig     `yaml:"redis"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Reminders RemindersConfig `yaml:"reminders"`
	Rules     RulesConfig     `yaml:"rules"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ProviderConfig struct {
	API            string   `yaml:"api"` // "openai-completions" or "anthropic-messages"
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	Model          string   `yaml:"model"`
	Fallbacks      []string `yaml:"fallbacks"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

type DatastoreConfig struct {
	Driver  string `yaml:"driver"` // "sqlite" (default) or "postgres"
	DataDir string `yaml:"data_dir"`
	DSN     string `yaml:"dsn"` // postgres only
}

type RedisConfig struct {
	Addr       string `yaml:"addr"` // empty disables the profile cache
	TTLSeconds int    `yaml:"ttl_seconds"`
}

func (r RedisConfig) TTL() time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return 5 * time.Minute
}

type SessionsConfig struct {
	Dir      string `yaml:"dir"`
	MaxTurns int    `yaml:"max_turns"`
}

type RemindersConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // e.g. "0 8 * * *"
}

type RulesConfig struct {
	Scripts []string `yaml:"scripts"` // Lua rule scripts, applied after built-in corrections
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandSecrets(cfg *Config) {
	cfg.Provider.BaseURL = expandEnv(cfg.Provider.BaseURL)
	cfg.Provider.APIKey = expandEnv(cfg.Provider.APIKey)
	cfg.Datastore.DSN = expandEnv(cfg.Datastore.DSN)
	cfg.Redis.Addr = expandEnv(cfg.Redis.Addr)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandSecrets(&cfg)
	return &cfg, nil
}
