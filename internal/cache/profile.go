// Package cache keeps short-lived profile summaries in Redis so repeated
// messages from the same user skip a datastore read. The cache is
// optional; a nil *ProfileCache is safe to call and always misses.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Summary is the cached slice of a profile the planner needs.
type Summary struct {
	UserID       string   `json:"user_id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Language     string   `json:"language"`
	HeightCM     float64  `json:"height_cm"`
	WeightKG     float64  `json:"weight_kg"`
	FitnessGoals []string `json:"fitness_goals"`
}

type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. Entries expire after ttl.
func New(addr string, ttl time.Duration) (*ProfileCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &ProfileCache{client: client, ttl: ttl}, nil
}

func (c *ProfileCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func key(userID string) string {
	return "profile:" + userID
}

// Get returns the cached summary, or nil on a miss or any Redis error.
func (c *ProfileCache) Get(ctx context.Context, userID string) *Summary {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		return nil
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

// Put stores the summary. Errors are swallowed; the cache is best-effort.
func (c *ProfileCache) Put(ctx context.Context, s *Summary) {
	if c == nil || s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(s.UserID), data, c.ttl).Err()
}

// Invalidate drops the user's entry after a profile write.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, key(userID)).Err()
}
