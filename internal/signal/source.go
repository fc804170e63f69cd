// Package signal 定义信号源：把单根K线的特征快照映射为交易动作。
package signal

import (
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
)

// Source 为信号源，相同输入必须产出相同动作。
type Source interface {
	Evaluate(v feature.Vector) domain.Action
}

// Func 允许使用函数作为信号源。
type Func func(v feature.Vector) domain.Action

func (f Func) Evaluate(v feature.Vector) domain.Action {
	if f == nil {
		return domain.Hold
	}
	return f(v)
}

// Bound 将静态函数与参数绑定为信号源。
type Bound[P any] struct {
	Fn     func(params P, v feature.Vector) domain.Action
	Params P
}

// Bind 创建 Bound 信号源。
func Bind[P any](fn func(params P, v feature.Vector) domain.Action, params P) Bound[P] {
	return Bound[P]{Fn: fn, Params: params}
}

func (b Bound[P]) Evaluate(v feature.Vector) domain.Action {
	if b.Fn == nil {
		return domain.Hold
	}
	return b.Fn(b.Params, v)
}

// Evaluate 调用信号源并校验返回的动作。
func Evaluate(src Source, v feature.Vector) (domain.Action, error) {
	action := src.Evaluate(v)
	if !action.Valid() {
		return domain.Hold, fmt.Errorf("signal: 第 %d 根K线返回 %s: %w", v.Index(), action, domain.ErrInvalidAction)
	}
	return action, nil
}
