package boss

import (
	"time"

	"raid-day/internal/combat"
)

// Rotation 当天的Boss配置
type Rotation struct {
	Name  string
	MaxHP int64
}

// rotationTable 固定的7条轮换表，按星期几确定性选择
var rotationTable = [7]Rotation{
	time.Sunday:    {Name: "Umbral Colossus", MaxHP: 100000},
	time.Monday:    {Name: "Cinder Wyrm", MaxHP: 80000},
	time.Tuesday:   {Name: "Tidebreaker Leviathan", MaxHP: 85000},
	time.Wednesday: {Name: "Hollow Monarch", MaxHP: 90000},
	time.Thursday:  {Name: "Stormcall Harpy", MaxHP: 75000},
	time.Friday:    {Name: "Gravetide Revenant", MaxHP: 95000},
	time.Saturday:  {Name: "Aurora Tyrant", MaxHP: 110000},
}

// RotationFor 返回指定星期的Boss
func RotationFor(weekday time.Weekday) Rotation {
	return rotationTable[weekday]
}

// DayKey 轮换周期的标识（本地日期），用于胜利幂等标记的作用域
func DayKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// ComputePhase 由HP比例推导阶段与狂暴状态。
// HP在本域内只减不增，所以阶段转换天然单向、读侧幂等。
func ComputePhase(currentHP, maxHP int64, policy combat.Policy) (phase int, enraged bool) {
	if maxHP <= 0 {
		return 1, false
	}
	ratio := float64(currentHP) / float64(maxHP)
	phase = 1
	if ratio <= policy.PhaseTwoThreshold {
		phase = 2
	}
	enraged = ratio <= policy.EnrageThreshold
	return phase, enraged
}
