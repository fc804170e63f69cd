package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BacktestConfig 控制单次回测的资金与成交规则。
type BacktestConfig struct {
	InitialCapital  float64 `mapstructure:"initial_capital"`
	CommissionRate  float64 `mapstructure:"commission_rate"`
	CommissionFixed float64 `mapstructure:"commission_fixed"`
	Fill            string  `mapstructure:"fill"`
	Sizing          string  `mapstructure:"sizing"`
	Fraction        float64 `mapstructure:"fraction"`
	AllowShort      bool    `mapstructure:"allow_short"`
	ForceClose      bool    `mapstructure:"force_close"`
	PeriodsPerYear  int     `mapstructure:"periods_per_year"`
}

// StrategyConfig 描述组合策略：指标、信号源与聚合方式。
type StrategyConfig struct {
	Policy     string            `mapstructure:"policy"`
	Indicators []IndicatorConfig `mapstructure:"indicators"`
	Sources    []SourceConfig    `mapstructure:"sources"`
}

// IndicatorConfig 对应一个指标计算。
type IndicatorConfig struct {
	Kind   string  `mapstructure:"kind"`
	Period int     `mapstructure:"period"`
	Fast   int     `mapstructure:"fast"`
	Slow   int     `mapstructure:"slow"`
	Signal int     `mapstructure:"signal"`
	StdDev float64 `mapstructure:"std_dev"`
	Alias  string  `mapstructure:"alias"`
}

// SourceConfig 对应一个信号源。未用到的参数按类型忽略。
type SourceConfig struct {
	Name       string  `mapstructure:"name"`
	Kind       string  `mapstructure:"kind"`
	Weight     float64 `mapstructure:"weight"`
	Indicator  string  `mapstructure:"indicator"`
	Fast       string  `mapstructure:"fast"`
	Slow       string  `mapstructure:"slow"`
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
	Action     string  `mapstructure:"action"`
	Seed       uint64  `mapstructure:"seed"`
	BuyProb    float64 `mapstructure:"buy_prob"`
	SellProb   float64 `mapstructure:"sell_prob"`
}

// SweepConfig 控制参数网格批量回测。
type SweepConfig struct {
	Parallelism     int       `mapstructure:"parallelism"`
	Policies        []string  `mapstructure:"policies"`
	CommissionRates []float64 `mapstructure:"commission_rates"`
	Seeds           []uint64  `mapstructure:"seeds"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var (
	policies       = []string{"majority", "weighted", "unanimous"}
	indicatorKinds = []string{"sma", "ema", "rsi", "macd", "bbands", "atr"}
	sourceKinds    = []string{"constant", "rsi_threshold", "sma_cross", "macd_cross", "bollinger", "random"}
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.Backtest.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_capital 必须大于0"))
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.CommissionFixed < 0 {
		err = multierr.Append(err, errors.New("backtest.commission 不能为负"))
	}
	if c.Backtest.Fill != "close" && c.Backtest.Fill != "next_open" {
		err = multierr.Append(err, fmt.Errorf("backtest.fill 只支持 close 或 next_open，当前 %q", c.Backtest.Fill))
	}
	if c.Backtest.Sizing != "all_cash" && c.Backtest.Sizing != "fraction" {
		err = multierr.Append(err, fmt.Errorf("backtest.sizing 只支持 all_cash 或 fraction，当前 %q", c.Backtest.Sizing))
	}
	if c.Backtest.Fraction <= 0 || c.Backtest.Fraction > 1 {
		err = multierr.Append(err, errors.New("backtest.fraction 必须位于(0,1]"))
	}
	if c.Backtest.PeriodsPerYear <= 0 {
		err = multierr.Append(err, errors.New("backtest.periods_per_year 必须大于0"))
	}

	err = multierr.Append(err, c.Strategy.validate())

	if c.Sweep.Parallelism <= 0 {
		err = multierr.Append(err, errors.New("sweep.parallelism 必须大于0"))
	}
	for _, p := range c.Sweep.Policies {
		if !oneOf(p, policies) {
			err = multierr.Append(err, fmt.Errorf("sweep.policies 包含未知策略 %q", p))
		}
	}
	for _, r := range c.Sweep.CommissionRates {
		if r < 0 {
			err = multierr.Append(err, errors.New("sweep.commission_rates 不能为负"))
			break
		}
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (s StrategyConfig) validate() error {
	var err error

	if !oneOf(s.Policy, policies) {
		err = multierr.Append(err, fmt.Errorf("strategy.policy 未知 %q", s.Policy))
	}
	for i, ind := range s.Indicators {
		if !oneOf(ind.Kind, indicatorKinds) {
			err = multierr.Append(err, fmt.Errorf("strategy.indicators[%d].kind 未知 %q", i, ind.Kind))
		}
	}
	if len(s.Sources) == 0 {
		err = multierr.Append(err, errors.New("strategy.sources 至少包含一个信号源"))
	}
	seen := make(map[string]struct{}, len(s.Sources))
	for i, src := range s.Sources {
		if src.Name == "" {
			err = multierr.Append(err, fmt.Errorf("strategy.sources[%d].name 不能为空", i))
		}
		if _, dup := seen[src.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("strategy.sources 名称重复 %q", src.Name))
		}
		seen[src.Name] = struct{}{}
		if !oneOf(src.Kind, sourceKinds) {
			err = multierr.Append(err, fmt.Errorf("strategy.sources[%d].kind 未知 %q", i, src.Kind))
		}
		if src.Weight < 0 {
			err = multierr.Append(err, fmt.Errorf("strategy.sources[%d].weight 不能为负", i))
		}
	}
	return err
}

func oneOf(value string, options []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, o := range options {
		if value == o {
			return true
		}
	}
	return false
}
