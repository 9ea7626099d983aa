package combat

import (
	"time"

	"raid-day/internal/model"
)

// EnergyManager 能量/冷却状态机。
// 客户端按帧调用 Tick，服务端在每次请求时用 Advance 按墙钟时间惰性重算，
// 两侧共享同一份策略常量，保证显示不发散。
type EnergyManager struct {
	policy Policy
}

func NewEnergyManager(policy Policy) *EnergyManager {
	return &EnergyManager{policy: policy}
}

// NewState 创建满能量的初始状态
func (m *EnergyManager) NewState(now time.Time) model.EnergyState {
	return model.EnergyState{
		Current:      m.policy.MaxEnergy,
		Max:          m.policy.MaxEnergy,
		CooldownsMS:  make([]int64, m.policy.MaxEnergy),
		LastRefresh:  now,
		SessionStart: now,
	}
}

// CanAttack 当前是否允许攻击（无副作用）
func (m *EnergyManager) CanAttack(e *model.EnergyState) bool {
	return e.Current > 0
}

// Consume 消耗一点能量。
// 固定选择下标最小的空闲槽位，保证冷却显示在重算后保持稳定。
func (m *EnergyManager) Consume(e *model.EnergyState) bool {
	if !m.CanAttack(e) {
		return false
	}
	for i, cd := range e.CooldownsMS {
		if cd <= 0 {
			e.CooldownsMS[i] = m.policy.CooldownPerCharge.Milliseconds()
			e.Current--
			return true
		}
	}
	return false
}

// ConsumeSpecial 消耗特殊技能所需能量（3个空闲槽位一并进入冷却）
func (m *EnergyManager) ConsumeSpecial(e *model.EnergyState) bool {
	if e.Current < m.policy.SpecialEnergyCost {
		return false
	}
	consumed := 0
	for i, cd := range e.CooldownsMS {
		if cd <= 0 {
			e.CooldownsMS[i] = m.policy.CooldownPerCharge.Milliseconds()
			e.Current--
			consumed++
			if consumed == m.policy.SpecialEnergyCost {
				return true
			}
		}
	}
	return consumed == m.policy.SpecialEnergyCost
}

// Tick 按增量时间推进所有冷却槽位，归零的槽位恢复能量（不超过上限）
func (m *EnergyManager) Tick(e *model.EnergyState, delta time.Duration) {
	deltaMS := delta.Milliseconds()
	if deltaMS <= 0 {
		return
	}
	for i, cd := range e.CooldownsMS {
		if cd <= 0 {
			continue
		}
		cd -= deltaMS
		if cd <= 0 {
			cd = 0
			if e.Current < e.Max {
				e.Current++
			}
		}
		e.CooldownsMS[i] = cd
	}
}

// Advance 服务端惰性重算：按距上次刷新的墙钟时间推进冷却
func (m *EnergyManager) Advance(e *model.EnergyState, now time.Time) {
	if elapsed := now.Sub(e.LastRefresh); elapsed > 0 {
		m.Tick(e, elapsed)
	}
	e.LastRefresh = now
	m.reconcile(e)
}

// FullEnergy 攻击瞬间是否处于满能量（必须在 Consume 之前判定）
func (m *EnergyManager) FullEnergy(e *model.EnergyState) bool {
	return e.Current == e.Max
}

// SessionExpired 2小时会话硬门槛是否已过
func (m *EnergyManager) SessionExpired(e *model.EnergyState, now time.Time) bool {
	return now.Sub(e.SessionStart) >= m.policy.SessionWindow
}

// ResetSession 强制重置：能量回满、冷却清零、会话窗口重新开始。
// 调用方负责先通过 SessionExpired 判定门槛，并同时清除特殊技能标记。
func (m *EnergyManager) ResetSession(e *model.EnergyState, now time.Time) {
	e.Current = m.policy.MaxEnergy
	e.Max = m.policy.MaxEnergy
	e.CooldownsMS = make([]int64, m.policy.MaxEnergy)
	e.LastRefresh = now
	e.SessionStart = now
}

// reconcile 维护不变量：Current 等于冷却为0的槽位数
func (m *EnergyManager) reconcile(e *model.EnergyState) {
	if len(e.CooldownsMS) != m.policy.MaxEnergy {
		// 存量数据槽位数不对时重建，多余能量直接截断
		cds := make([]int64, m.policy.MaxEnergy)
		copy(cds, e.CooldownsMS)
		e.CooldownsMS = cds
		e.Max = m.policy.MaxEnergy
	}
	available := 0
	for _, cd := range e.CooldownsMS {
		if cd <= 0 {
			available++
		}
	}
	e.Current = available
}
