package cache

import (
	"testing"
	"time"

	"raid-day/internal/model"
)

func TestBossStateRoundTrip(t *testing.T) {
	c := NewLocalCache(16, time.Minute)

	if _, ok := c.GetBossState("post-1"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	state := &model.BossState{Name: "Aurora Tyrant", CurrentHP: 110000, MaxHP: 110000, Phase: 1}
	c.SetBossState("post-1", state)

	got, ok := c.GetBossState("post-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Aurora Tyrant" {
		t.Errorf("got %q, want Aurora Tyrant", got.Name)
	}

	if _, ok := c.GetBossState("post-2"); ok {
		t.Error("cache hit leaked across instances")
	}
}

func TestInvalidateInstance(t *testing.T) {
	c := NewLocalCache(16, time.Minute)

	c.SetBossState("post-1", &model.BossState{Name: "a"})
	c.SetCommunityStats("post-1", &model.CommunityStats{ActivePlayers: 3})
	c.SetTopN("post-1", "session", 10, nil)
	c.SetBossState("post-2", &model.BossState{Name: "b"})

	c.InvalidateInstance("post-1")

	if _, ok := c.GetBossState("post-1"); ok {
		t.Error("boss state survived invalidation")
	}
	if _, ok := c.GetCommunityStats("post-1"); ok {
		t.Error("community stats survived invalidation")
	}
	if _, ok := c.GetBossState("post-2"); !ok {
		t.Error("invalidation bled into another instance")
	}
}

func TestExpiration(t *testing.T) {
	c := NewLocalCache(16, 10*time.Millisecond)

	c.SetBossState("post-1", &model.BossState{Name: "a"})
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.GetBossState("post-1"); ok {
		t.Error("expired entry still served")
	}
}

func TestEviction(t *testing.T) {
	c := NewLocalCache(2, time.Minute)

	c.SetBossState("post-1", &model.BossState{Name: "a"})
	c.SetBossState("post-2", &model.BossState{Name: "b"})
	// Touch post-1 so post-2 becomes the LRU victim
	c.GetBossState("post-1")
	c.SetBossState("post-3", &model.BossState{Name: "c"})

	if _, ok := c.GetBossState("post-2"); ok {
		t.Error("expected LRU entry to be evicted")
	}
	if _, ok := c.GetBossState("post-1"); !ok {
		t.Error("recently used entry was evicted")
	}
}
