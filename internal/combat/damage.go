package combat

import (
	"math"
	"math/rand"

	"raid-day/internal/model"
)

// DamageResult 一次伤害计算的结果
type DamageResult struct {
	Damage     int64
	IsCritical bool
}

// Calculator 伤害/暴击计算器。
// 随机源由调用方注入，测试时使用固定种子即可复现分布。
type Calculator struct {
	policy Policy
	rng    *rand.Rand
}

func NewCalculator(policy Policy, rng *rand.Rand) *Calculator {
	return &Calculator{policy: policy, rng: rng}
}

// Roll 计算一次普通攻击的伤害。
// 计算顺序：基础区间 → 等级缩放 → 随机浮动 → 取整 → 满能量加成 →
// 暴击倍率 → 二阶段减伤 → 取整。满能量判定必须发生在扣除能量之前。
func (c *Calculator) Roll(class model.CharacterClass, level int, fullEnergy bool, bossPhase int) DamageResult {
	stats := c.policy.StatsFor(class)

	base := stats.MinDamage + c.rng.Int63n(stats.MaxDamage-stats.MinDamage+1)
	variance := c.policy.VarianceMin + c.rng.Float64()*(c.policy.VarianceMax-c.policy.VarianceMin)
	raw := float64(base) * (1 + float64(level)*c.policy.LevelScale) * variance

	if fullEnergy {
		raw *= c.policy.FullEnergyBonus
	}
	// 暴击前的伤害在这里取整，暴击是对整数值的精确倍乘
	damage := math.Floor(raw)

	isCrit := c.rng.Float64() < stats.CritChance
	if isCrit {
		damage *= c.policy.CritMultiplier
	}

	if bossPhase >= 2 {
		damage *= c.policy.PhaseTwoResistance
	}

	return DamageResult{Damage: int64(math.Floor(damage)), IsCritical: isCrit}
}

// RollSpecial 计算特殊技能伤害（固定倍率，不参与暴击）
func (c *Calculator) RollSpecial(class model.CharacterClass, level int, bossPhase int) int64 {
	stats := c.policy.StatsFor(class)

	base := stats.MinDamage + c.rng.Int63n(stats.MaxDamage-stats.MinDamage+1)
	variance := c.policy.VarianceMin + c.rng.Float64()*(c.policy.VarianceMax-c.policy.VarianceMin)
	damage := math.Floor(float64(base)*(1+float64(level)*c.policy.LevelScale)*variance) * c.policy.SpecialMultiplier

	if bossPhase >= 2 {
		damage *= c.policy.PhaseTwoResistance
	}
	return int64(math.Floor(damage))
}

// MaxPlausible 给定职业与等级下单次攻击可能达到的伤害上限。
// 服务端用它拒绝客户端上报的离谱伤害值，而不是盲信客户端计算。
func (c *Calculator) MaxPlausible(class model.CharacterClass, level int) int64 {
	stats := c.policy.StatsFor(class)
	max := float64(stats.MaxDamage) * (1 + float64(level)*c.policy.LevelScale) * c.policy.VarianceMax
	max *= c.policy.FullEnergyBonus * c.policy.CritMultiplier
	return int64(math.Ceil(max))
}

// MaxPlausibleSpecial 特殊技能的伤害上限
func (c *Calculator) MaxPlausibleSpecial(class model.CharacterClass, level int) int64 {
	stats := c.policy.StatsFor(class)
	max := float64(stats.MaxDamage) * (1 + float64(level)*c.policy.LevelScale) * c.policy.VarianceMax * c.policy.SpecialMultiplier
	return int64(math.Ceil(max))
}
