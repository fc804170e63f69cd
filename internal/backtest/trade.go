package backtest

import "time"

// Side 表示持仓方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// State 为引擎状态。
type State string

const (
	StateFlat  State = "FLAT"
	StateLong  State = "LONG"
	StateShort State = "SHORT"
)

// Position 为当前持仓，空仓时数量为0；做空时数量为负。
type Position struct {
	Quantity float64
	AvgCost  float64
}

// Trade 为一笔已平仓交易，只在平仓时生成。
type Trade struct {
	Side       Side
	EntryIndex int
	ExitIndex  int
	EntryTime  time.Time
	ExitTime   time.Time
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	Commission float64 // 开仓与平仓手续费之和
	PnL        float64 // 扣除手续费后的已实现盈亏
}
