package utils

import (
	"math/rand"
	"time"
	"unicode/utf8"
)

// ValidateUserID 验证用户ID格式
func ValidateUserID(userID string) bool {
	if userID == "" {
		return false
	}
	return utf8.RuneCountInString(userID) <= 64
}

// ValidateInstanceID 验证游戏实例ID格式
func ValidateInstanceID(instanceID string) bool {
	if instanceID == "" {
		return false
	}
	return utf8.RuneCountInString(instanceID) <= 128
}

// Jitter 返回 base±fraction 范围内的随机时长，用于打散轮询节奏
func Jitter(base time.Duration, fraction float64, rng *rand.Rand) time.Duration {
	if fraction <= 0 || base <= 0 {
		return base
	}
	spread := float64(base) * fraction
	offset := (rng.Float64()*2 - 1) * spread
	return time.Duration(float64(base) + offset)
}

// ClampInt64 限制值在指定范围内
func ClampInt64(value, min, max int64) int64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Min 返回最小值
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max 返回最大值
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
