package signal

import (
	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
)

var (
	_ Source = Constant{}
	_ Source = RSIThreshold{}
	_ Source = SMACross{}
	_ Source = MACDCross{}
	_ Source = BollingerReversion{}
	_ Source = (*Script)(nil)
)

// Constant 每根K线都返回固定动作。
type Constant struct {
	Action domain.Action
}

func (c Constant) Evaluate(feature.Vector) domain.Action {
	return c.Action
}

// RSIThreshold 在超卖时买入、超买时卖出。
type RSIThreshold struct {
	Indicator  string
	Oversold   float64
	Overbought float64
}

// NewRSIThreshold 使用常见阈值 30/70。
func NewRSIThreshold(indicator string) RSIThreshold {
	return RSIThreshold{Indicator: indicator, Oversold: 30, Overbought: 70}
}

func (r RSIThreshold) Evaluate(v feature.Vector) domain.Action {
	rsi, ok := v.Value(r.Indicator)
	if !ok {
		return domain.Hold
	}
	switch {
	case rsi < r.Oversold:
		return domain.Buy
	case rsi > r.Overbought:
		return domain.Sell
	default:
		return domain.Hold
	}
}

// SMACross 在快线上穿慢线时买入，下穿时卖出。
type SMACross struct {
	Fast string
	Slow string
}

func (s SMACross) Evaluate(v feature.Vector) domain.Action {
	return crossover(v, s.Fast, s.Slow)
}

// MACDCross 在 MACD 线上穿信号线时买入，下穿时卖出。
type MACDCross struct {
	Line   string
	Signal string
}

// NewMACDCross 按 MACD 指标名推导信号线名称。
func NewMACDCross(name string) MACDCross {
	return MACDCross{Line: name, Signal: name + "_signal"}
}

func (m MACDCross) Evaluate(v feature.Vector) domain.Action {
	return crossover(v, m.Line, m.Signal)
}

// BollingerReversion 收盘跌破下轨买入，突破上轨卖出。
type BollingerReversion struct {
	Upper string
	Lower string
}

// NewBollingerReversion 按布林带指标名推导上下轨名称。
func NewBollingerReversion(name string) BollingerReversion {
	return BollingerReversion{Upper: name + "_upper", Lower: name + "_lower"}
}

func (b BollingerReversion) Evaluate(v feature.Vector) domain.Action {
	upper, okU := v.Value(b.Upper)
	lower, okL := v.Value(b.Lower)
	if !okU || !okL {
		return domain.Hold
	}
	price := v.Close()
	switch {
	case price < lower:
		return domain.Buy
	case price > upper:
		return domain.Sell
	default:
		return domain.Hold
	}
}

// Script 按K线下标返回预设动作，未覆盖的下标返回 Hold。
type Script struct {
	Actions map[int]domain.Action
}

// NewScript 由动作列表创建脚本，第 i 个元素对应第 i 根K线。
func NewScript(actions ...domain.Action) *Script {
	m := make(map[int]domain.Action, len(actions))
	for i, a := range actions {
		m[i] = a
	}
	return &Script{Actions: m}
}

func (s *Script) Evaluate(v feature.Vector) domain.Action {
	if s == nil {
		return domain.Hold
	}
	if a, ok := s.Actions[v.Index()]; ok {
		return a
	}
	return domain.Hold
}

func crossover(v feature.Vector, fastName, slowName string) domain.Action {
	fast, ok1 := v.Value(fastName)
	slow, ok2 := v.Value(slowName)
	prevFast, ok3 := v.Prev(fastName)
	prevSlow, ok4 := v.Prev(slowName)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.Hold
	}
	switch {
	case prevFast <= prevSlow && fast > slow:
		return domain.Buy
	case prevFast >= prevSlow && fast < slow:
		return domain.Sell
	default:
		return domain.Hold
	}
}
