package backtest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
)

// Report 为一次回测的完整输出，全部为副本。
type Report struct {
	SeriesID        string
	Bars            int
	Result          Result
	Trades          []Trade
	Equity          []float64
	DegradedBars    int
	TotalCommission float64
	OpenCommission  float64
	FinalEquity     float64
	OpenPosition    Position
}

// Engine 逐根K线驱动决策与组合状态变化。
type Engine struct {
	cfg     Config
	decider Decider
	builder *feature.Builder
	logger  *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, decider Decider, builder *feature.Builder, logger *zap.Logger) (*Engine, error) {
	if decider == nil {
		return nil, fmt.Errorf("backtest: decider 不能为空: %w", domain.ErrConfiguration)
	}
	if builder == nil {
		return nil, fmt.Errorf("backtest: feature builder 不能为空: %w", domain.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:     cfg.normalize(),
		decider: decider,
		builder: builder,
		logger:  logger,
	}, nil
}

// Config 返回归一化后的参数。
func (e *Engine) Config() Config {
	return e.cfg
}

// Run 执行完整回测流程。每根K线检查一次 ctx。
func (e *Engine) Run(ctx context.Context, series domain.Series) (Report, error) {
	if err := series.Validate(); err != nil {
		return Report{}, fmt.Errorf("backtest: %w", err)
	}

	warmup := e.builder.Warmup()
	if series.Len() <= warmup {
		return Report{}, fmt.Errorf("backtest: 序列长度 %d 不足，预热窗口需要 %d 根且至少留出1根可交易K线: %w",
			series.Len(), warmup, domain.ErrInsufficientData)
	}

	if err := e.decider.Freeze(); err != nil {
		return Report{}, err
	}

	frame, err := e.builder.Prepare(series)
	if err != nil {
		return Report{}, err
	}

	pf := NewPortfolio(e.cfg.InitialCapital, e.cfg.Commission)
	degraded := 0
	pending := domain.Hold
	bars := series.Bars

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("backtest: 第 %d 根K线处中止: %w", i, err)
		}

		if pending != domain.Hold {
			if err := e.apply(pf, pending, openPrice(bar), i, bar); err != nil {
				return Report{}, err
			}
			pending = domain.Hold
		}

		if i < warmup {
			pf.Carry()
			continue
		}

		vector := frame.At(i)
		if vector.Degraded() {
			degraded++
			e.logger.Debug("指标不可用，本根K线按 Hold 处理",
				zap.String("series", series.ID),
				zap.Int("index", i),
			)
			pf.Record(bar.Close)
			continue
		}

		decision, err := e.decider.Decide(vector)
		if err != nil {
			return Report{}, fmt.Errorf("backtest: 第 %d 根K线决策失败: %w", i, err)
		}

		switch e.cfg.Fill {
		case FillNextOpen:
			if i+1 < len(bars) {
				pending = decision.Action
			}
		default:
			if err := e.apply(pf, decision.Action, bar.Close, i, bar); err != nil {
				return Report{}, err
			}
		}

		pf.Record(bar.Close)
	}

	last := bars[len(bars)-1]
	if e.cfg.ForceClose && pf.State() != StateFlat {
		if _, err := e.close(pf, last.Close, len(bars)-1, last); err != nil {
			return Report{}, err
		}
		pf.restate(last.Close)
	}

	equity := pf.Equity()
	trades := pf.Trades()
	report := Report{
		SeriesID:        series.ID,
		Bars:            len(bars),
		Result:          Analyze(equity, trades, e.cfg.PeriodsPerYear),
		Trades:          trades,
		Equity:          equity,
		DegradedBars:    degraded,
		TotalCommission: pf.TotalCommission(),
		OpenCommission:  pf.OpenCommission(),
		FinalEquity:     equity[len(equity)-1],
		OpenPosition:    pf.Position(),
	}

	e.logger.Info("回测完成",
		zap.String("series", series.ID),
		zap.Int("bars", report.Bars),
		zap.Int("trades", report.Result.TotalTrades),
		zap.Int("degraded_bars", degraded),
		zap.Float64("total_return", report.Result.TotalReturn),
		zap.Float64("max_drawdown", report.Result.MaxDrawdown),
		zap.Float64("final_equity", report.FinalEquity),
	)

	return report, nil
}

// apply 根据当前状态执行决策；与状态不符的决策不产生任何变化。
func (e *Engine) apply(pf *Portfolio, action domain.Action, price float64, index int, bar domain.Bar) error {
	state := pf.State()
	switch {
	case state == StateFlat && action == domain.Buy:
		return e.open(pf, SideLong, price, index, bar)
	case state == StateFlat && action == domain.Sell && e.cfg.AllowShort:
		return e.open(pf, SideShort, price, index, bar)
	case state == StateLong && action == domain.Sell,
		state == StateShort && action == domain.Buy:
		_, err := e.close(pf, price, index, bar)
		return err
	default:
		return nil
	}
}

func (e *Engine) open(pf *Portfolio, side Side, price float64, index int, bar domain.Bar) error {
	qty := pf.Quantity(price, e.cfg.Fraction)
	if qty.Sign() <= 0 {
		e.logger.Debug("资金不足以开仓一个单位，忽略信号",
			zap.Int("index", index),
			zap.Float64("cash", pf.Cash()),
			zap.Float64("price", price),
		)
		return nil
	}
	if err := pf.Open(side, qty, price, index, bar.Timestamp); err != nil {
		return err
	}
	e.logger.Debug("开仓",
		zap.String("side", string(side)),
		zap.Int("index", index),
		zap.String("quantity", qty.String()),
		zap.Float64("price", price),
		zap.Float64("cash", pf.Cash()),
	)
	return nil
}

func (e *Engine) close(pf *Portfolio, price float64, index int, bar domain.Bar) (Trade, error) {
	trade, err := pf.Close(price, index, bar.Timestamp)
	if err != nil {
		if errors.Is(err, errNoPosition) {
			return Trade{}, nil
		}
		return Trade{}, err
	}
	e.logger.Debug("平仓",
		zap.String("side", string(trade.Side)),
		zap.Int("entry_index", trade.EntryIndex),
		zap.Int("exit_index", trade.ExitIndex),
		zap.Float64("pnl", trade.PnL),
		zap.Float64("commission", trade.Commission),
	)
	return trade, nil
}

// openPrice 返回开盘价，数据缺失开盘价时退回收盘价。
func openPrice(bar domain.Bar) float64 {
	if bar.Open > 0 {
		return bar.Open
	}
	return bar.Close
}
