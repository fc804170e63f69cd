package backtest

import (
	"strategy-lab/internal/ensemble"
	"strategy-lab/internal/feature"
)

// Decider 为每根K线给出聚合决策，*ensemble.Ensemble 即为实现。
type Decider interface {
	// Freeze 在运行开始时锁定结构，空集合返回配置错误。
	Freeze() error
	Decide(v feature.Vector) (ensemble.Decision, error)
}

var _ Decider = (*ensemble.Ensemble)(nil)
