package backtest

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"strategy-lab/internal/domain"
)

// FillPolicy 决定成交价格。
type FillPolicy string

const (
	// FillClose 以当前K线收盘价成交。
	FillClose FillPolicy = "close"
	// FillNextOpen 以下一根K线开盘价成交。
	FillNextOpen FillPolicy = "next_open"
)

// SizingRule 决定开仓数量。
type SizingRule string

const (
	// SizeAllCash 用尽可用资金，按整数单位向下取整。
	SizeAllCash SizingRule = "all_cash"
	// SizeFraction 使用可用资金的固定比例。
	SizeFraction SizingRule = "fraction"
)

const defaultPeriodsPerYear = 252

// Commission 描述手续费：按成交额比例加每笔固定费用。
type Commission struct {
	Rate  float64
	Fixed float64
}

// Config 定义回测参数。
type Config struct {
	InitialCapital float64    // 初始资金
	Commission     Commission // 手续费
	Fill           FillPolicy // 成交价格规则
	Sizing         SizingRule // 开仓数量规则
	Fraction       float64    // SizeFraction 下使用的资金比例
	AllowShort     bool       // 是否允许做空，开启即视为允许保证金
	ForceClose     bool       // 序列结束时是否强制平仓
	PeriodsPerYear int        // 年化使用的周期数
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.Fill == "" {
		cfg.Fill = FillClose
	}
	if cfg.Sizing == "" {
		cfg.Sizing = SizeAllCash
	}
	if cfg.Sizing == SizeAllCash {
		cfg.Fraction = 1
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = defaultPeriodsPerYear
	}
	return cfg
}

// Validate 校验参数，所有问题合并为一个配置错误返回。
func (c Config) Validate() error {
	var err error

	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		err = multierr.Append(err, fmt.Errorf("initial_capital 必须大于0，当前 %v", c.InitialCapital))
	}
	if c.Commission.Rate < 0 || math.IsNaN(c.Commission.Rate) {
		err = multierr.Append(err, fmt.Errorf("commission.rate 不能为负，当前 %v", c.Commission.Rate))
	}
	if c.Commission.Fixed < 0 || math.IsNaN(c.Commission.Fixed) {
		err = multierr.Append(err, fmt.Errorf("commission.fixed 不能为负，当前 %v", c.Commission.Fixed))
	}
	switch c.Fill {
	case "", FillClose, FillNextOpen:
	default:
		err = multierr.Append(err, fmt.Errorf("不支持的成交规则 %q", c.Fill))
	}
	switch c.Sizing {
	case "", SizeAllCash:
	case SizeFraction:
		if !(c.Fraction > 0 && c.Fraction <= 1) {
			err = multierr.Append(err, fmt.Errorf("fraction 必须位于(0,1]，当前 %v", c.Fraction))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("不支持的仓位规则 %q", c.Sizing))
	}
	if c.PeriodsPerYear < 0 {
		err = multierr.Append(err, errors.New("periods_per_year 不能为负"))
	}

	if err != nil {
		return fmt.Errorf("backtest: 配置校验失败: %w: %w", domain.ErrConfiguration, err)
	}
	return nil
}
