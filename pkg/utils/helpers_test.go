package utils

import (
	"math/rand"
	"testing"
	"time"
)

func TestJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := 10 * time.Second

	for i := 0; i < 1000; i++ {
		d := Jitter(base, 0.2, rng)
		if d < 8*time.Second || d > 12*time.Second {
			t.Fatalf("jittered duration %v outside ±20%% of %v", d, base)
		}
	}
}

func TestJitterZeroFraction(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	if d := Jitter(10*time.Second, 0, rng); d != 10*time.Second {
		t.Errorf("zero fraction should return base, got %v", d)
	}
}

func TestValidateUserID(t *testing.T) {
	if ValidateUserID("") {
		t.Error("empty user id accepted")
	}
	if !ValidateUserID("user-42") {
		t.Error("normal user id rejected")
	}

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if ValidateUserID(string(long)) {
		t.Error("over-long user id accepted")
	}
}

func TestClampInt64(t *testing.T) {
	if got := ClampInt64(-5, 0, 10); got != 0 {
		t.Errorf("ClampInt64(-5) = %d, want 0", got)
	}
	if got := ClampInt64(15, 0, 10); got != 10 {
		t.Errorf("ClampInt64(15) = %d, want 10", got)
	}
	if got := ClampInt64(5, 0, 10); got != 5 {
		t.Errorf("ClampInt64(5) = %d, want 5", got)
	}
}
