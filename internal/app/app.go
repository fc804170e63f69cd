package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/feature"
	"strategy-lab/internal/indicator"
	"strategy-lab/internal/store"
)

// RunSummary 为一次已保存的回测。
type RunSummary struct {
	ID     string
	Label  string
	Report backtest.Report
}

// App 聚合核心依赖：配置、日志、存储与共享的指标缓存。
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	bars       *store.BarRepository
	runs       *store.RunRepository
	calculator *indicator.Calculator
}

// New 创建 App 实例并初始化仓储。
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bars, err := store.NewBarRepository(st, logger)
	if err != nil {
		return nil, err
	}
	runs, err := store.NewRunRepository(st, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		bars:       bars,
		runs:       runs,
		calculator: indicator.NewCalculator(),
	}, nil
}

// Bars 返回K线仓储。
func (a *App) Bars() *store.BarRepository {
	return a.bars
}

// Backtest 对指定序列按基础配置回测一次并保存结果。
func (a *App) Backtest(ctx context.Context, seriesID string) (RunSummary, error) {
	series, err := a.bars.LoadSeries(ctx, seriesID)
	if err != nil {
		return RunSummary{}, err
	}
	builder, err := a.builder()
	if err != nil {
		return RunSummary{}, err
	}

	params := runParams{
		Policy:   a.cfg.Strategy.Policy,
		Backtest: a.cfg.Backtest,
		Sources:  a.cfg.Strategy.Sources,
	}
	ens, err := newEnsemble(params.Policy, params.Sources, 0)
	if err != nil {
		return RunSummary{}, err
	}

	engine, err := backtest.NewEngine(backtestConfig(a.cfg.Backtest), ens, builder, a.logger)
	if err != nil {
		return RunSummary{}, err
	}
	report, err := engine.Run(ctx, series)
	if err != nil {
		return RunSummary{}, err
	}

	label := "run/policy=" + ens.Policy().String()
	id, err := a.runs.SaveRun(ctx, label, params, report)
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{ID: id, Label: label, Report: report}, nil
}

// Sweep 在同一序列上并发执行参数网格中的全部组合，结果逐个保存。
func (a *App) Sweep(ctx context.Context, seriesID string) ([]RunSummary, error) {
	series, err := a.bars.LoadSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	builder, err := a.builder()
	if err != nil {
		return nil, err
	}

	variants := sweepVariants(a.cfg)
	jobs := make([]backtest.Job, len(variants))
	for i, v := range variants {
		jobs[i] = v.job()
	}

	results, err := backtest.Sweep(ctx, series, jobs, backtest.SweepOptions{
		Parallelism: a.cfg.Sweep.Parallelism,
		Builder:     builder,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, len(results))
	for i, r := range results {
		id, err := a.runs.SaveRun(ctx, r.Name, variants[i].params, r.Report)
		if err != nil {
			return nil, fmt.Errorf("app: 保存回测 %q 失败: %w", r.Name, err)
		}
		summaries[i] = RunSummary{ID: id, Label: r.Name, Report: r.Report}
	}

	a.logger.Info("参数网格回测已保存", zap.String("series", seriesID), zap.Int("runs", len(summaries)))
	return summaries, nil
}

// Runs 返回最近的回测记录。
func (a *App) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	return a.runs.ListRuns(ctx, limit)
}

func (a *App) builder() (*feature.Builder, error) {
	specs, err := indicatorSpecs(a.cfg.Strategy.Indicators)
	if err != nil {
		return nil, err
	}
	return feature.NewBuilder(a.calculator, a.logger, specs...)
}
