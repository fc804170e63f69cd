package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"strategy-lab/internal/app"
	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/log"
	"strategy-lab/internal/store"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "backtest",
		Short:         "信号组合回测工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")

	var symbol string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "按基础配置回测单个序列",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				summary, err := a.Backtest(ctx, symbol)
				if err != nil {
					return err
				}
				printReports(cmd.OutOrStdout(), []app.RunSummary{summary})
				return nil
			})
		},
	}
	runCmd.Flags().StringVar(&symbol, "symbol", "", "序列ID")
	_ = runCmd.MarkFlagRequired("symbol")

	var sweepSymbol string
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "按参数网格并发回测",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				summaries, err := a.Sweep(ctx, sweepSymbol)
				if err != nil {
					return err
				}
				printReports(cmd.OutOrStdout(), summaries)
				return nil
			})
		},
	}
	sweepCmd.Flags().StringVar(&sweepSymbol, "symbol", "", "序列ID")
	_ = sweepCmd.MarkFlagRequired("symbol")

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "列出最近的回测记录",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				records, err := a.Runs(ctx, limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	runsCmd.Flags().IntVar(&limit, "limit", 20, "最多显示的记录数")

	root.AddCommand(runCmd, sweepCmd, runsCmd)
	return root
}

// withApp 加载配置、日志与数据库后执行 fn，结束时释放资源。
func withApp(ctx context.Context, configPath string, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	labApp, err := app.New(cfg, logger, sqliteStore)
	if err != nil {
		return err
	}
	return fn(ctx, labApp)
}

func printReports(w io.Writer, summaries []app.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tRETURN\tANNUAL\tSHARPE\tMAX_DD\tTRADES\tWIN_RATE\tPROFIT_FACTOR\tFINAL_EQUITY\tDEGRADED")
	for _, s := range summaries {
		writeResult(tw, s.ID, s.Label, s.Report.Result, s.Report.FinalEquity, s.Report.DegradedBars)
	}
	_ = tw.Flush()
}

func printRuns(w io.Writer, records []store.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tRETURN\tANNUAL\tSHARPE\tMAX_DD\tTRADES\tWIN_RATE\tPROFIT_FACTOR\tFINAL_EQUITY\tDEGRADED")
	for _, r := range records {
		writeResult(tw, r.ID, r.Label, r.Result, r.FinalEquity, r.DegradedBars)
	}
	_ = tw.Flush()
}

func writeResult(w io.Writer, id, label string, r backtest.Result, finalEquity float64, degraded int) {
	fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%.2f%%\t%.3f\t%.2f%%\t%d\t%.1f%%\t%s\t%.2f\t%d\n",
		id, label,
		r.TotalReturn*100, r.AnnualizedReturn*100, r.SharpeRatio, r.MaxDrawdown*100,
		r.TotalTrades, r.WinRate*100, formatProfitFactor(r.ProfitFactor), finalEquity, degraded,
	)
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
