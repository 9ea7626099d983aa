package combat

import (
	"time"

	"raid-day/internal/model"
)

// ClassStats 职业基础伤害范围与暴击率
type ClassStats struct {
	MinDamage  int64
	MaxDamage  int64
	CritChance float64
}

// Policy 战斗策略配置。
// 所有可调常量集中在这里，各模块不得使用散落的魔法数字。
type Policy struct {
	MaxEnergy         int
	CooldownPerCharge time.Duration
	SessionWindow     time.Duration

	FullEnergyBonus float64
	LevelScale      float64
	VarianceMin     float64
	VarianceMax     float64
	CritMultiplier  float64

	PhaseTwoThreshold  float64
	EnrageThreshold    float64
	PhaseTwoResistance float64

	SpecialEnergyCost int
	SpecialMultiplier float64

	Classes map[model.CharacterClass]ClassStats
}

// DefaultPolicy 返回默认战斗策略。
// 暴击采用职业差异化概率（盗贼30%、其余10%），倍率统一为2倍；
// 特殊技能需要至少3点能量并消耗3点，每会话仅限一次。
func DefaultPolicy() Policy {
	return Policy{
		MaxEnergy:         5,
		CooldownPerCharge: 30 * time.Second,
		SessionWindow:     2 * time.Hour,

		FullEnergyBonus: 1.2,
		LevelScale:      0.02,
		VarianceMin:     0.85,
		VarianceMax:     1.15,
		CritMultiplier:  2.0,

		PhaseTwoThreshold:  0.75,
		EnrageThreshold:    0.25,
		PhaseTwoResistance: 0.9,

		SpecialEnergyCost: 3,
		SpecialMultiplier: 2.5,

		Classes: map[model.CharacterClass]ClassStats{
			model.ClassWarrior: {MinDamage: 170, MaxDamage: 230, CritChance: 0.10},
			model.ClassMage:    {MinDamage: 160, MaxDamage: 240, CritChance: 0.10},
			model.ClassRogue:   {MinDamage: 165, MaxDamage: 225, CritChance: 0.30},
			model.ClassHealer:  {MinDamage: 160, MaxDamage: 220, CritChance: 0.10},
		},
	}
}

// StatsFor 获取职业属性，未知职业返回法师的保守区间
func (p Policy) StatsFor(class model.CharacterClass) ClassStats {
	if s, ok := p.Classes[class]; ok {
		return s
	}
	return p.Classes[model.ClassMage]
}
