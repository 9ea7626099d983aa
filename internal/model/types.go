package model

import (
	"time"
)

// CharacterClass 角色职业
type CharacterClass string

const (
	ClassWarrior CharacterClass = "warrior"
	ClassMage    CharacterClass = "mage"
	ClassRogue   CharacterClass = "rogue"
	ClassHealer  CharacterClass = "healer"
)

// ValidClass 检查职业是否合法
func ValidClass(c CharacterClass) bool {
	switch c {
	case ClassWarrior, ClassMage, ClassRogue, ClassHealer:
		return true
	}
	return false
}

// EnergyState 玩家能量状态（5个独立冷却的攻击充能）
type EnergyState struct {
	Current      int       `json:"current"`
	Max          int       `json:"max"`
	CooldownsMS  []int64   `json:"cooldowns"`
	LastRefresh  time.Time `json:"lastRefresh"`
	SessionStart time.Time `json:"sessionStart"`
}

// PlayerData 玩家信息（每个游戏实例一份）
type PlayerData struct {
	UserID             string         `json:"userId" db:"user_id"`
	InstanceID         string         `json:"instanceId" db:"instance_id"`
	Class              CharacterClass `json:"class" db:"class"`
	Level              int            `json:"level" db:"level"`
	Experience         int64          `json:"experience" db:"experience"`
	SessionDamage      int64          `json:"sessionDamage" db:"session_damage"`
	TotalDamage        int64          `json:"totalDamage" db:"total_damage"`
	SpecialAbilityUsed bool           `json:"specialAbilityUsed" db:"special_ability_used"`
	Energy             EnergyState    `json:"energy"`
	UpdatedAt          time.Time      `json:"updatedAt" db:"updated_at"`
}

// GainExperience 增加经验并按1000点一级进行升级（取模升级，非曲线）
func (p *PlayerData) GainExperience(xp int64) {
	p.Experience += xp
	for p.Experience >= 1000 {
		p.Experience -= 1000
		p.Level++
	}
}

// BossState 当前Boss的共享状态（全实例共享，非玩家私有）
type BossState struct {
	Name             string    `json:"bossName"`
	CurrentHP        int64     `json:"currentHP"`
	MaxHP            int64     `json:"maxHP"`
	Phase            int       `json:"phase"`
	IsEnraged        bool      `json:"isEnraged"`
	TotalDamageDealt int64     `json:"totalDamageDealt"`
	LastDamageTime   time.Time `json:"lastDamageTime"`
	ActivePlayers    int64     `json:"activePlayers"`
	Day              string    `json:"day"`
}

// Defeated 判断Boss是否被击败
func (b *BossState) Defeated() bool {
	return b.CurrentHP <= 0
}

// AttackEvent 单次攻击事件（仅保留最近若干条用于社区聚合）
type AttackEvent struct {
	UserID     string         `json:"userId"`
	Class      CharacterClass `json:"class"`
	Damage     int64          `json:"damage"`
	IsCritical bool           `json:"isCritical"`
	Timestamp  time.Time      `json:"timestamp"`
}

// LeaderboardEntry 排行榜条目（PlayerData的只读投影）
type LeaderboardEntry struct {
	UserID        string         `json:"userId"`
	Class         CharacterClass `json:"class"`
	Level         int            `json:"level"`
	SessionDamage int64          `json:"sessionDamage"`
	TotalDamage   int64          `json:"totalDamage"`
	Rank          int            `json:"rank"`
}

// CommunityStats 社区统计（5秒轮询）
type CommunityStats struct {
	AttacksPerMinute int            `json:"attacksPerMinute"`
	RecentAttacks    []*AttackEvent `json:"recentAttacks"`
	ActivePlayers    int64          `json:"activePlayers"`
	TotalDamageDealt int64          `json:"totalDamageDealt"`
}

// AttackRequest 攻击请求
type AttackRequest struct {
	Class      CharacterClass `json:"class" binding:"required"`
	Damage     int64          `json:"damage" binding:"required"`
	IsCritical bool           `json:"isCritical"`
}

// AttackResult 攻击结果（服务端权威数据）
type AttackResult struct {
	Success         bool  `json:"success"`
	NewBossHP       int64 `json:"newBossHP"`
	BossPhase       int   `json:"bossPhase"`
	IsEnraged       bool  `json:"isEnraged"`
	BossDefeated    bool  `json:"bossDefeated"`
	XPGained        int64 `json:"xpGained"`
	EnergyRemaining int   `json:"energyRemaining"`
}

// SpecialRequest 特殊技能请求
type SpecialRequest struct {
	Class  CharacterClass `json:"class" binding:"required"`
	Damage int64          `json:"damage" binding:"required"`
}

// SpecialResult 特殊技能结果
type SpecialResult struct {
	Status    string `json:"status"`
	Damage    int64  `json:"damage"`
	NewBossHP int64  `json:"newBossHP"`
}

// PlayerSnapshot 玩家完整快照（用于15秒同步，纠正客户端漂移）
type PlayerSnapshot struct {
	Player            *PlayerData `json:"player"`
	CooldownRemaining []int64     `json:"cooldownRemaining"`
	ServerTime        time.Time   `json:"serverTime"`
}
