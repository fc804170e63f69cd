package app

import (
	"errors"
	"math"
	"testing"
	"time"

	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Backtest: config.BacktestConfig{
			InitialCapital: 10000,
			CommissionRate: 0.001,
			Fill:           "close",
			Sizing:         "all_cash",
			Fraction:       1,
			ForceClose:     true,
			PeriodsPerYear: 252,
		},
		Strategy: config.StrategyConfig{
			Policy: "weighted",
			Indicators: []config.IndicatorConfig{
				{Kind: "rsi", Period: 14},
				{Kind: "sma", Period: 5},
				{Kind: "sma", Period: 20},
				{Kind: "bbands", Period: 20, StdDev: 2},
			},
			Sources: []config.SourceConfig{
				{Name: "rsi", Kind: "rsi_threshold", Indicator: "rsi_14", Weight: 2},
				{Name: "cross", Kind: "sma_cross", Fast: "sma_5", Slow: "sma_20"},
				{Name: "bands", Kind: "bollinger", Indicator: "bb_20"},
				{Name: "noise", Kind: "random", Seed: 7, BuyProb: 0.2, SellProb: 0.2},
			},
		},
		Sweep: config.SweepConfig{
			Parallelism:     2,
			Policies:        []string{"majority", "weighted"},
			CommissionRates: []float64{0, 0.002},
		},
		Database: config.DatabaseConfig{InMemory: true, MaxOpenConns: 1},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	st, err := store.NewSQLite(cfg.Database)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	a, err := New(cfg, nil, st)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 160)
	for i := range bars {
		c := 100 + 15*math.Sin(float64(i)/6) + float64(i)*0.1
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, AdjClose: c, Volume: 1000}
	}
	if err := a.Bars().SaveBars(t.Context(), "SPY", bars); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestApp_Backtest(t *testing.T) {
	a := newTestApp(t, testConfig())

	summary, err := a.Backtest(t.Context(), "SPY")
	if err != nil {
		t.Fatalf("Backtest returned error: %v", err)
	}
	if summary.ID == "" || summary.Report.Bars != 160 || len(summary.Report.Equity) != 160 {
		t.Fatalf("unexpected summary %+v", summary.Report.Result)
	}
	if summary.Report.OpenPosition.Quantity != 0 {
		t.Errorf("force_close should leave the portfolio flat")
	}

	again, err := a.Backtest(t.Context(), "SPY")
	if err != nil {
		t.Fatal(err)
	}
	if again.Report.FinalEquity != summary.Report.FinalEquity {
		t.Errorf("repeated runs differ: %f vs %f", again.Report.FinalEquity, summary.Report.FinalEquity)
	}

	runs, err := a.Runs(t.Context(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != again.ID {
		t.Errorf("latest run = %q, want %q", runs[0].ID, again.ID)
	}
}

func TestApp_Sweep(t *testing.T) {
	a := newTestApp(t, testConfig())

	summaries, err := a.Sweep(t.Context(), "SPY")
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	want := []string{
		"policy=majority/rate=0/seed=0",
		"policy=majority/rate=0.002/seed=0",
		"policy=weighted/rate=0/seed=0",
		"policy=weighted/rate=0.002/seed=0",
	}
	if len(summaries) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(summaries), len(want))
	}
	for i, s := range summaries {
		if s.Label != want[i] {
			t.Errorf("summary %d label = %s, want %s", i, s.Label, want[i])
		}
	}

	runs, err := a.Runs(t.Context(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != len(want) {
		t.Errorf("persisted %d runs, want %d", len(runs), len(want))
	}
}

func TestApp_Errors(t *testing.T) {
	a := newTestApp(t, testConfig())
	if _, err := a.Backtest(t.Context(), "QQQ"); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("unknown series: expected ErrInsufficientData, got %v", err)
	}

	cfg := testConfig()
	cfg.Strategy.Indicators = append(cfg.Strategy.Indicators, config.IndicatorConfig{Kind: "sma", Period: 200})
	long := newTestApp(t, cfg)
	if _, err := long.Backtest(t.Context(), "SPY"); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("warm-up longer than series: expected ErrInsufficientData, got %v", err)
	}

	cfg = testConfig()
	cfg.Strategy.Sources = append(cfg.Strategy.Sources, config.SourceConfig{Name: "bad", Kind: "sma_cross"})
	bad := newTestApp(t, cfg)
	if _, err := bad.Backtest(t.Context(), "SPY"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("incomplete source: expected ErrConfiguration, got %v", err)
	}
}
