package app

import (
	"fmt"
	"strconv"
	"strings"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/ensemble"
	"strategy-lab/internal/indicator"
	"strategy-lab/internal/signal"
)

// indicatorSpecs 把配置转换为指标参数。
func indicatorSpecs(cfgs []config.IndicatorConfig) ([]indicator.Spec, error) {
	specs := make([]indicator.Spec, 0, len(cfgs))
	for i, c := range cfgs {
		spec := indicator.Spec{
			Kind:   indicator.Kind(strings.ToLower(c.Kind)),
			Period: c.Period,
			Fast:   c.Fast,
			Slow:   c.Slow,
			Signal: c.Signal,
			StdDev: c.StdDev,
			Alias:  c.Alias,
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("strategy.indicators[%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// newSource 根据类型构建信号源。seedOffset 叠加到随机源的种子上。
func newSource(c config.SourceConfig, seedOffset uint64) (signal.Source, error) {
	switch strings.ToLower(c.Kind) {
	case "constant":
		action, err := domain.ParseAction(c.Action)
		if err != nil {
			return nil, fmt.Errorf("信号源 %q: %w", c.Name, err)
		}
		return signal.Constant{Action: action}, nil
	case "rsi_threshold":
		src := signal.NewRSIThreshold(orDefault(c.Indicator, "rsi_14"))
		if c.Oversold > 0 {
			src.Oversold = c.Oversold
		}
		if c.Overbought > 0 {
			src.Overbought = c.Overbought
		}
		if src.Oversold >= src.Overbought {
			return nil, fmt.Errorf("信号源 %q: oversold 必须小于 overbought: %w", c.Name, domain.ErrConfiguration)
		}
		return src, nil
	case "sma_cross":
		if c.Fast == "" || c.Slow == "" {
			return nil, fmt.Errorf("信号源 %q: sma_cross 需要 fast 与 slow: %w", c.Name, domain.ErrConfiguration)
		}
		return signal.SMACross{Fast: c.Fast, Slow: c.Slow}, nil
	case "macd_cross":
		return signal.NewMACDCross(orDefault(c.Indicator, "macd")), nil
	case "bollinger":
		return signal.NewBollingerReversion(orDefault(c.Indicator, "bb_20")), nil
	case "random":
		return signal.NewRandom(c.Seed+seedOffset, c.BuyProb, c.SellProb), nil
	default:
		return nil, fmt.Errorf("未知的信号源类型 %q: %w", c.Kind, domain.ErrConfiguration)
	}
}

// newEnsemble 每次调用都返回全新的组合，信号源状态互不共享。
func newEnsemble(policyName string, sources []config.SourceConfig, seedOffset uint64) (*ensemble.Ensemble, error) {
	policy, err := ensemble.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}

	ens := ensemble.New(policy)
	for _, c := range sources {
		src, err := newSource(c, seedOffset)
		if err != nil {
			return nil, err
		}
		var opts []ensemble.MemberOption
		if c.Weight > 0 {
			opts = append(opts, ensemble.WithWeight(c.Weight))
		}
		if err := ens.Add(c.Name, src, opts...); err != nil {
			return nil, err
		}
	}
	return ens, nil
}

func backtestConfig(c config.BacktestConfig) backtest.Config {
	return backtest.Config{
		InitialCapital: c.InitialCapital,
		Commission: backtest.Commission{
			Rate:  c.CommissionRate,
			Fixed: c.CommissionFixed,
		},
		Fill:           backtest.FillPolicy(c.Fill),
		Sizing:         backtest.SizingRule(c.Sizing),
		Fraction:       c.Fraction,
		AllowShort:     c.AllowShort,
		ForceClose:     c.ForceClose,
		PeriodsPerYear: c.PeriodsPerYear,
	}
}

// runParams 随回测结果一同保存。
type runParams struct {
	Policy   string                `json:"policy"`
	Seed     uint64                `json:"seed_offset"`
	Backtest config.BacktestConfig `json:"backtest"`
	Sources  []config.SourceConfig `json:"sources"`
}

// variant 为参数网格中的一个组合。
type variant struct {
	name   string
	params runParams
}

// sweepVariants 展开 策略 × 手续费率 × 种子 的参数网格，未配置的维度沿用基础配置。
func sweepVariants(cfg *config.Config) []variant {
	policies := cfg.Sweep.Policies
	if len(policies) == 0 {
		policies = []string{cfg.Strategy.Policy}
	}
	rates := cfg.Sweep.CommissionRates
	if len(rates) == 0 {
		rates = []float64{cfg.Backtest.CommissionRate}
	}
	seeds := cfg.Sweep.Seeds
	if len(seeds) == 0 {
		seeds = []uint64{0}
	}

	variants := make([]variant, 0, len(policies)*len(rates)*len(seeds))
	for _, policy := range policies {
		for _, rate := range rates {
			for _, seed := range seeds {
				bt := cfg.Backtest
				bt.CommissionRate = rate
				variants = append(variants, variant{
					name: fmt.Sprintf("policy=%s/rate=%s/seed=%d",
						policy, strconv.FormatFloat(rate, 'f', -1, 64), seed),
					params: runParams{
						Policy:   policy,
						Seed:     seed,
						Backtest: bt,
						Sources:  cfg.Strategy.Sources,
					},
				})
			}
		}
	}
	return variants
}

func (v variant) job() backtest.Job {
	return backtest.Job{
		Name:   v.name,
		Config: backtestConfig(v.params.Backtest),
		NewDecider: func() (backtest.Decider, error) {
			return newEnsemble(v.params.Policy, v.params.Sources, v.params.Seed)
		},
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
