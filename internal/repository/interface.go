package repository

import (
	"errors"
)

// 定义通用的错误
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrBossNotFound   = errors.New("boss not found")
	ErrInvalidData    = errors.New("invalid data")
)
