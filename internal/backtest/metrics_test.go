package backtest

import (
	"math"
	"testing"
)

func TestAnalyze_MaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		equity []float64
		want   float64
	}{
		{name: "peak to trough", equity: []float64{100, 120, 90, 110}, want: 0.25},
		{name: "monotonic", equity: []float64{100, 101, 102}, want: 0},
		{name: "single point", equity: []float64{100}, want: 0},
		{name: "empty", equity: nil, want: 0},
		{name: "two drawdowns", equity: []float64{100, 80, 150, 90, 200}, want: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.equity, nil, 252).MaxDrawdown
			if !almostEqual(got, tt.want) {
				t.Errorf("MaxDrawdown = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAnalyze_TradeStatistics(t *testing.T) {
	tests := []struct {
		name      string
		pnl       []float64
		winRate   float64
		profit    float64
		avgWin    float64
		avgLoss   float64
		infProfit bool
	}{
		{name: "no trades"},
		{name: "only winners", pnl: []float64{10, 30}, winRate: 1, avgWin: 20, infProfit: true},
		{name: "only losers", pnl: []float64{-10, -30}, winRate: 0, profit: 0, avgLoss: -20},
		{name: "mixed", pnl: []float64{30, -10, 10, -10}, winRate: 0.5, profit: 2, avgWin: 20, avgLoss: -10},
		{name: "breakeven is not a win", pnl: []float64{0, 10}, winRate: 0.5, avgWin: 10, infProfit: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades := make([]Trade, len(tt.pnl))
			for i, p := range tt.pnl {
				trades[i] = Trade{PnL: p}
			}
			r := Analyze([]float64{100, 100}, trades, 252)

			if r.TotalTrades != len(tt.pnl) {
				t.Errorf("TotalTrades = %d, want %d", r.TotalTrades, len(tt.pnl))
			}
			if !almostEqual(r.WinRate, tt.winRate) {
				t.Errorf("WinRate = %f, want %f", r.WinRate, tt.winRate)
			}
			if tt.infProfit {
				if !math.IsInf(r.ProfitFactor, 1) {
					t.Errorf("ProfitFactor = %f, want +Inf", r.ProfitFactor)
				}
			} else if !almostEqual(r.ProfitFactor, tt.profit) {
				t.Errorf("ProfitFactor = %f, want %f", r.ProfitFactor, tt.profit)
			}
			if !almostEqual(r.AvgWin, tt.avgWin) || !almostEqual(r.AvgLoss, tt.avgLoss) {
				t.Errorf("AvgWin/AvgLoss = %f/%f, want %f/%f", r.AvgWin, r.AvgLoss, tt.avgWin, tt.avgLoss)
			}
		})
	}
}

func TestAnalyze_Returns(t *testing.T) {
	r := Analyze([]float64{100, 200, 400}, nil, 2)
	if !almostEqual(r.TotalReturn, 3) {
		t.Errorf("TotalReturn = %f, want 3", r.TotalReturn)
	}
	// 两个周期对应一年，年化等于总收益
	if !almostEqual(r.AnnualizedReturn, 3) {
		t.Errorf("AnnualizedReturn = %f, want 3", r.AnnualizedReturn)
	}
	// 每期收益恒为 100%，标准差为 0
	if r.SharpeRatio != 0 {
		t.Errorf("SharpeRatio with zero variance = %f, want 0", r.SharpeRatio)
	}

	wiped := Analyze([]float64{100, 0}, nil, 252)
	if wiped.TotalReturn != -1 || wiped.AnnualizedReturn != -1 || wiped.MaxDrawdown != 1 {
		t.Errorf("wiped out account = %+v", wiped)
	}
}

func TestAnalyze_Sharpe(t *testing.T) {
	equity := []float64{100, 110, 99, 108.9}
	returns := []float64{0.1, -0.1, 0.1}
	mean := 0.1 / 3
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	want := mean / math.Sqrt(ss/2) * math.Sqrt(252)

	got := Analyze(equity, nil, 252).SharpeRatio
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("SharpeRatio = %f, want %f", got, want)
	}
	if got := Analyze([]float64{100, 110}, nil, 252).SharpeRatio; got != 0 {
		t.Errorf("SharpeRatio with one return = %f, want 0", got)
	}
}
