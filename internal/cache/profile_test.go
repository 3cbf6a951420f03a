package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *ProfileCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if got := c.Get(ctx, "u1"); got != nil {
		t.Fatalf("cold cache returned %+v", got)
	}

	c.Put(ctx, &Summary{
		UserID:       "u1",
		Name:         "Ada",
		Role:         "member",
		HeightCM:     170,
		WeightKG:     67.6,
		FitnessGoals: []string{"endurance"},
	})

	got := c.Get(ctx, "u1")
	if got == nil {
		t.Fatal("miss after put")
	}
	if got.Name != "Ada" || got.WeightKG != 67.6 {
		t.Errorf("got %+v", got)
	}
	if len(got.FitnessGoals) != 1 || got.FitnessGoals[0] != "endurance" {
		t.Errorf("goals = %v", got.FitnessGoals)
	}
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, &Summary{UserID: "u1", Name: "Ada"})
	c.Invalidate(ctx, "u1")
	if got := c.Get(ctx, "u1"); got != nil {
		t.Errorf("entry survived invalidation: %+v", got)
	}
}

func TestExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(mr.Addr(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	c.Put(ctx, &Summary{UserID: "u1", Name: "Ada"})
	mr.FastForward(2 * time.Second)
	if got := c.Get(ctx, "u1"); got != nil {
		t.Errorf("entry survived TTL: %+v", got)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *ProfileCache
	ctx := context.Background()
	if got := c.Get(ctx, "u1"); got != nil {
		t.Errorf("nil cache returned %+v", got)
	}
	c.Put(ctx, &Summary{UserID: "u1"})
	c.Invalidate(ctx, "u1")
	if err := c.Close(); err != nil {
		t.Errorf("nil close: %v", err)
	}
}
