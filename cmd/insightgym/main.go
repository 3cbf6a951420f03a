package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightgym/insightgym/internal/cache"
	"github.com/insightgym/insightgym/internal/config"
	"github.com/insightgym/insightgym/internal/failover"
	"github.com/insightgym/insightgym/internal/metrics"
	"github.com/insightgym/insightgym/internal/orchestrator"
	"github.com/insightgym/insightgym/internal/provider"
	"github.com/insightgym/insightgym/internal/scheduler"
	"github.com/insightgym/insightgym/internal/state"
	"github.com/insightgym/insightgym/internal/store"
	"github.com/insightgym/insightgym/internal/version"
)

func main() {
	var (
		configPath  = flag.String("config", "insightgym.yaml", "path to config file")
		message     = flag.String("message", "", "process one message and print the outcome as JSON")
		userID      = flag.String("user", "", "caller user id")
		role        = flag.String("role", "member", "caller role (member, coach, admin)")
		language    = flag.String("lang", "en", "caller language")
		serve       = flag.Bool("serve", false, "keep running: reminder scheduler and metrics listener")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("insightgym: %v", err)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("insightgym: %v", err)
	}
	defer closeStore()

	prov, err := provider.FromConfig("primary", cfg.Provider.API, cfg.Provider.BaseURL, cfg.Provider.APIKey)
	if err != nil {
		log.Fatalf("insightgym: %v", err)
	}
	gen := failover.NewController(prov, cfg.Provider.Model, cfg.Provider.Fallbacks, cfg.Provider.Timeout())

	var profileCache *cache.ProfileCache
	if cfg.Redis.Addr != "" {
		profileCache, err = cache.New(cfg.Redis.Addr, cfg.Redis.TTL())
		if err != nil {
			log.Printf("insightgym: profile cache disabled: %v", err)
		} else {
			defer func() { _ = profileCache.Close() }()
		}
	}

	sessions, err := state.NewSessionStore(cfg.Sessions.Dir, cfg.Sessions.MaxTurns)
	if err != nil {
		log.Fatalf("insightgym: %v", err)
	}

	orch := orchestrator.New(gen, st, orchestrator.Options{
		Cache:      profileCache,
		Sessions:   sessions,
		LuaScripts: cfg.Rules.Scripts,
		MaxTokens:  cfg.Provider.MaxTokens,
	})

	if *message != "" {
		if *userID == "" {
			log.Fatal("insightgym: -message requires -user")
		}
		outcome := orch.Handle(context.Background(), *message, orchestrator.Caller{
			ID:       *userID,
			Role:     *role,
			Language: *language,
		})
		out, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			log.Fatalf("insightgym: %v", err)
		}
		fmt.Println(string(out))
		if !*serve {
			return
		}
	}

	if !*serve {
		flag.Usage()
		os.Exit(2)
	}

	if cfg.Reminders.Enabled {
		sched, err := scheduler.New(st, cfg.Reminders.Cron)
		if err != nil {
			log.Fatalf("insightgym: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			log.Printf("insightgym: metrics on %s", cfg.Metrics.Addr)
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Printf("insightgym: metrics listener: %v", err)
			}
		}()
	}

	log.Printf("insightgym %s running", version.Version)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Print("insightgym: shutting down")
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Datastore.Driver {
	case "", "sqlite":
		dir := cfg.Datastore.DataDir
		if dir == "" {
			dir = "data"
		}
		s, err := store.Open(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := store.OpenPostgres(cfg.Datastore.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown datastore driver %q", cfg.Datastore.Driver)
	}
}
