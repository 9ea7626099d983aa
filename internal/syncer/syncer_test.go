package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raid-day/internal/model"
)

func TestBackoffDelay(t *testing.T) {
	base := 10 * time.Second
	max := 2 * time.Minute

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{3, 80 * time.Second},
		{4, 2 * time.Minute},
		{10, 2 * time.Minute},
	}

	for _, tt := range tests {
		if got := backoffDelay(base, tt.failures, max); got != tt.want {
			t.Errorf("backoffDelay(%v, %d) = %v, want %v", base, tt.failures, got, tt.want)
		}
	}
}

func TestSignificantChange(t *testing.T) {
	base := func() *model.BossState {
		return &model.BossState{CurrentHP: 50000, MaxHP: 100000, Phase: 2, IsEnraged: false}
	}

	tests := []struct {
		name   string
		mutate func(*model.BossState)
		prev   *model.BossState
		want   bool
	}{
		{"first observation", func(*model.BossState) {}, nil, false},
		{"no change", func(*model.BossState) {}, base(), false},
		{"phase change", func(s *model.BossState) { s.Phase = 1 }, base(), true},
		{"enrage flip", func(s *model.BossState) { s.IsEnraged = true }, base(), true},
		{"small hp delta", func(s *model.BossState) { s.CurrentHP = 46000 }, base(), false},
		{"large hp delta", func(s *model.BossState) { s.CurrentHP = 44000 }, base(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base()
			tt.mutate(next)
			if got := SignificantChange(tt.prev, next); got != tt.want {
				t.Errorf("SignificantChange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncerDeliversBossUpdates(t *testing.T) {
	state := model.BossState{
		Name:      "Cinder Wyrm",
		CurrentHP: 64000,
		MaxHP:     80000,
		Phase:     1,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/game/raid/post-1/boss" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-User-ID") != "user-1" {
			http.Error(w, "missing identity", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(state)
	}))
	defer server.Close()

	cfg := Config{
		BossInterval:      10 * time.Millisecond,
		CommunityInterval: time.Hour,
		PlayerInterval:    time.Hour,
		MaxBackoff:        time.Second,
	}

	updates := make(chan *model.BossState, 1)
	s := New(NewClient(server.URL, "post-1", "user-1"), cfg, Callbacks{
		OnBossUpdate: func(state *model.BossState, significant bool) {
			select {
			case updates <- state:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case got := <-updates:
		if got.Name != "Cinder Wyrm" || got.CurrentHP != 64000 {
			t.Errorf("unexpected boss state delivered: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no boss update delivered within 2s")
	}

	cancel()
	s.Wait()
}

func TestSyncerStreamFailureIsIsolated(t *testing.T) {
	var state = model.BossState{Name: "Hollow Monarch", CurrentHP: 90000, MaxHP: 90000, Phase: 1}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/game/raid/post-2/boss":
			json.NewEncoder(w).Encode(state)
		default:
			// Community and player endpoints are down
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	cfg := Config{
		BossInterval:      10 * time.Millisecond,
		CommunityInterval: 10 * time.Millisecond,
		PlayerInterval:    10 * time.Millisecond,
		MaxBackoff:        time.Second,
	}

	bossUpdates := make(chan struct{}, 4)
	errors := make(chan string, 4)
	s := New(NewClient(server.URL, "post-2", "user-2"), cfg, Callbacks{
		OnBossUpdate: func(*model.BossState, bool) {
			select {
			case bossUpdates <- struct{}{}:
			default:
			}
		},
		OnError: func(stream string, err error) {
			select {
			case errors <- stream:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Wait()
	}()

	// The failing streams must report errors while the boss stream keeps delivering
	var gotBoss, gotError bool
	deadline := time.After(2 * time.Second)
	for !gotBoss || !gotError {
		select {
		case <-bossUpdates:
			gotBoss = true
		case <-errors:
			gotError = true
		case <-deadline:
			t.Fatalf("timed out: bossUpdate=%v error=%v", gotBoss, gotError)
		}
	}
}
