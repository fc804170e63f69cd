package indicator

import (
	"errors"
	"fmt"
	"strings"

	"strategy-lab/internal/domain"
)

// Kind 标识指标类型。
type Kind string

const (
	KindSMA    Kind = "sma"
	KindEMA    Kind = "ema"
	KindRSI    Kind = "rsi"
	KindMACD   Kind = "macd"
	KindBBands Kind = "bbands"
	KindATR    Kind = "atr"
)

// Spec 描述一次指标计算的参数。
type Spec struct {
	Kind   Kind
	Period int
	Fast   int
	Slow   int
	Signal int
	StdDev float64
	// Alias 覆盖默认的输出名前缀。
	Alias string
}

// SMA 返回简单均线参数。
func SMA(period int) Spec { return Spec{Kind: KindSMA, Period: period} }

// EMA 返回指数均线参数。
func EMA(period int) Spec { return Spec{Kind: KindEMA, Period: period} }

// RSI 返回相对强弱指标参数。
func RSI(period int) Spec { return Spec{Kind: KindRSI, Period: period} }

// MACD 返回 MACD 参数。
func MACD(fast, slow, signal int) Spec {
	return Spec{Kind: KindMACD, Fast: fast, Slow: slow, Signal: signal}
}

// Bollinger 返回布林带参数。
func Bollinger(period int, stdDev float64) Spec {
	return Spec{Kind: KindBBands, Period: period, StdDev: stdDev}
}

// ATR 返回平均真实波幅参数。
func ATR(period int) Spec { return Spec{Kind: KindATR, Period: period} }

// Name 返回指标名称，输出名均以此为前缀。
func (s Spec) Name() string {
	if alias := strings.TrimSpace(s.Alias); alias != "" {
		return alias
	}
	switch s.Kind {
	case KindMACD:
		return "macd"
	case KindBBands:
		return fmt.Sprintf("bb_%d", s.Period)
	default:
		return fmt.Sprintf("%s_%d", s.Kind, s.Period)
	}
}

// Outputs 返回该指标产出的全部序列名称。
func (s Spec) Outputs() []string {
	name := s.Name()
	switch s.Kind {
	case KindMACD:
		return []string{name, name + "_signal", name + "_hist"}
	case KindBBands:
		return []string{name + "_upper", name + "_middle", name + "_lower"}
	default:
		return []string{name}
	}
}

// Lookback 返回首个有效值之前的K线数量。
func (s Spec) Lookback() int {
	switch s.Kind {
	case KindSMA, KindEMA, KindBBands:
		return s.Period - 1
	case KindRSI, KindATR:
		return s.Period
	case KindMACD:
		return (s.Slow - 1) + (s.Signal - 1)
	default:
		return 0
	}
}

// Validate 校验参数合法性。
func (s Spec) Validate() error {
	var err error
	switch s.Kind {
	case KindSMA, KindEMA, KindRSI, KindATR:
		if s.Period < 2 {
			err = fmt.Errorf("%s 周期必须不小于2，当前 %d", s.Kind, s.Period)
		}
	case KindBBands:
		if s.Period < 2 {
			err = fmt.Errorf("bbands 周期必须不小于2，当前 %d", s.Period)
		} else if s.StdDev <= 0 {
			err = fmt.Errorf("bbands 标准差倍数必须为正，当前 %.4f", s.StdDev)
		}
	case KindMACD:
		if s.Fast < 2 || s.Slow < 2 || s.Signal < 1 {
			err = fmt.Errorf("macd 参数非法 fast=%d slow=%d signal=%d", s.Fast, s.Slow, s.Signal)
		} else if s.Fast >= s.Slow {
			err = fmt.Errorf("macd fast(%d) 必须小于 slow(%d)", s.Fast, s.Slow)
		}
	case "":
		err = errors.New("指标类型不能为空")
	default:
		err = fmt.Errorf("不支持的指标类型 %q", s.Kind)
	}
	if err != nil {
		return fmt.Errorf("indicator: %v: %w", err, domain.ErrConfiguration)
	}
	return nil
}

func (s Spec) params() string {
	return fmt.Sprintf("p=%d,f=%d,s=%d,sig=%d,sd=%g", s.Period, s.Fast, s.Slow, s.Signal, s.StdDev)
}
