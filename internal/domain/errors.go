package domain

import "errors"

var (
	// ErrConfiguration 表示参数非法，或在运行开始后修改策略结构。
	ErrConfiguration = errors.New("configuration error")
	// ErrInsufficientData 表示序列长度不足以覆盖指标预热窗口。
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidAction 表示信号源返回了无法识别的动作。
	ErrInvalidAction = errors.New("invalid action")
)
