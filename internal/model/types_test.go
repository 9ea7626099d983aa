package model

import (
	"testing"
)

func TestGainExperienceLevelsUp(t *testing.T) {
	tests := []struct {
		name      string
		startXP   int64
		startLvl  int
		gain      int64
		wantXP    int64
		wantLevel int
	}{
		{"no boundary", 0, 1, 999, 999, 1},
		{"exact boundary", 0, 1, 1000, 0, 2},
		{"carry over", 800, 1, 500, 300, 2},
		{"multiple levels", 0, 1, 2500, 500, 3},
		{"zero gain", 400, 3, 0, 400, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PlayerData{Level: tt.startLvl, Experience: tt.startXP}
			p.GainExperience(tt.gain)
			if p.Experience != tt.wantXP || p.Level != tt.wantLevel {
				t.Errorf("got level %d xp %d, want level %d xp %d", p.Level, p.Experience, tt.wantLevel, tt.wantXP)
			}
		})
	}
}

func TestValidClass(t *testing.T) {
	for _, c := range []CharacterClass{ClassWarrior, ClassMage, ClassRogue, ClassHealer} {
		if !ValidClass(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
	if ValidClass("paladin") {
		t.Error("expected unknown class to be invalid")
	}
	if ValidClass("") {
		t.Error("expected empty class to be invalid")
	}
}

func TestBossDefeated(t *testing.T) {
	b := &BossState{CurrentHP: 1}
	if b.Defeated() {
		t.Error("boss with 1 hp reported defeated")
	}
	b.CurrentHP = 0
	if !b.Defeated() {
		t.Error("boss with 0 hp not reported defeated")
	}
}
