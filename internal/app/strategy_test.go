package app

import (
	"errors"
	"testing"

	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/ensemble"
	"strategy-lab/internal/feature"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		wantErr error
	}{
		{name: "constant", cfg: config.SourceConfig{Kind: "constant", Action: "buy"}},
		{name: "constant invalid action", cfg: config.SourceConfig{Kind: "constant", Action: "short"}, wantErr: domain.ErrInvalidAction},
		{name: "rsi defaults", cfg: config.SourceConfig{Kind: "rsi_threshold"}},
		{name: "rsi inverted thresholds", cfg: config.SourceConfig{Kind: "rsi_threshold", Oversold: 80, Overbought: 20}, wantErr: domain.ErrConfiguration},
		{name: "sma cross", cfg: config.SourceConfig{Kind: "sma_cross", Fast: "sma_5", Slow: "sma_20"}},
		{name: "sma cross missing slow", cfg: config.SourceConfig{Kind: "sma_cross", Fast: "sma_5"}, wantErr: domain.ErrConfiguration},
		{name: "macd", cfg: config.SourceConfig{Kind: "MACD_CROSS"}},
		{name: "bollinger", cfg: config.SourceConfig{Kind: "bollinger"}},
		{name: "random", cfg: config.SourceConfig{Kind: "random", Seed: 1, BuyProb: 0.5}},
		{name: "unknown", cfg: config.SourceConfig{Kind: "oracle"}, wantErr: domain.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := newSource(tt.cfg, 0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || src == nil {
				t.Fatalf("newSource returned %v, %v", src, err)
			}
		})
	}
}

func TestNewSource_ConstantAction(t *testing.T) {
	src, err := newSource(config.SourceConfig{Kind: "constant", Action: "SELL"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := src.Evaluate(feature.Vector{}); got != domain.Sell {
		t.Errorf("Evaluate = %s, want SELL", got)
	}
}

func TestNewEnsemble_FreshInstances(t *testing.T) {
	sources := []config.SourceConfig{
		{Name: "a", Kind: "random", Seed: 3, BuyProb: 0.5, SellProb: 0.5},
		{Name: "b", Kind: "constant", Action: "hold", Weight: 3},
	}
	first, err := newEnsemble("weighted", sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newEnsemble("weighted", sources, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first == second || first.Policy() != ensemble.Weighted || first.Len() != 2 {
		t.Fatalf("unexpected ensembles %v %v", first.Names(), second.Names())
	}

	v := feature.Vector{}
	for range 20 {
		a, _ := first.Decide(v)
		b, _ := second.Decide(v)
		if a.Action != b.Action {
			t.Fatal("same seed must yield identical decisions")
		}
		// 权重 3 的 Hold 始终压过权重 1 的随机票
		if a.Action != domain.Hold {
			t.Fatalf("weighted decision = %s, want HOLD", a.Action)
		}
	}

	if _, err := newEnsemble("loudest", sources, 0); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown policy: expected ErrConfiguration, got %v", err)
	}
}

func TestSweepVariants(t *testing.T) {
	cfg := testConfig()
	cfg.Sweep.Seeds = []uint64{1, 2, 3}
	variants := sweepVariants(cfg)
	if len(variants) != 2*2*3 {
		t.Fatalf("got %d variants, want 12", len(variants))
	}
	if variants[0].params.Backtest.CommissionRate != 0 || variants[3].params.Backtest.CommissionRate != 0.002 {
		t.Errorf("commission grid not applied: %+v", variants[3].params.Backtest)
	}
	if cfg.Backtest.CommissionRate != 0.001 {
		t.Error("sweep must not mutate the base config")
	}

	cfg.Sweep = config.SweepConfig{Parallelism: 1}
	base := sweepVariants(cfg)
	if len(base) != 1 || base[0].params.Policy != "weighted" {
		t.Errorf("empty grid should fall back to base config, got %+v", base)
	}

	job := base[0].job()
	d1, err := job.NewDecider()
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := job.NewDecider()
	if d1 == d2 {
		t.Error("job factory must build a new decider each call")
	}
}
