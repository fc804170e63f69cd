package backtest

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
)

// Job 为一次独立回测。NewDecider 每次调用都必须返回全新的实例，
// 以保证并发回测之间不共享可变状态。
type Job struct {
	Name       string
	Config     Config
	NewDecider func() (Decider, error)
}

// SweepOptions 控制批量回测。
type SweepOptions struct {
	Parallelism int
	Builder     *feature.Builder
	Logger      *zap.Logger
}

// SweepResult 为单个任务的结果。
type SweepResult struct {
	Name   string
	Report Report
}

// Sweep 在同一序列上并发执行多个独立回测，结果按任务顺序返回。
// 任一任务失败会取消其余任务。
func Sweep(ctx context.Context, series domain.Series, jobs []Job, opts SweepOptions) ([]SweepResult, error) {
	if opts.Builder == nil {
		return nil, fmt.Errorf("backtest: sweep 缺少 feature builder: %w", domain.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]SweepResult, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for i, job := range jobs {
		group.Go(func() error {
			if job.NewDecider == nil {
				return fmt.Errorf("backtest: 任务 %q 缺少 decider 工厂: %w", job.Name, domain.ErrConfiguration)
			}
			decider, err := job.NewDecider()
			if err != nil {
				return fmt.Errorf("backtest: 任务 %q 构建决策器失败: %w", job.Name, err)
			}
			engine, err := NewEngine(job.Config, decider, opts.Builder, logger.With(zap.String("job", job.Name)))
			if err != nil {
				return fmt.Errorf("backtest: 任务 %q: %w", job.Name, err)
			}
			report, err := engine.Run(groupCtx, series)
			if err != nil {
				return fmt.Errorf("backtest: 任务 %q: %w", job.Name, err)
			}
			results[i] = SweepResult{Name: job.Name, Report: report}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logger.Info("批量回测完成", zap.Int("jobs", len(jobs)), zap.Int("parallelism", parallelism))
	return results, nil
}
