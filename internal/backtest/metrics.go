package backtest

import "math"

// Result 汇总回测绩效指标，计算后不再变化。
type Result struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	WinRate          float64
	TotalTrades      int
	ProfitFactor     float64 // 只有盈利交易时为 +Inf
	AvgWin           float64
	AvgLoss          float64 // 亏损交易的平均盈亏，为负数
}

// Analyze 由净值曲线与已平仓交易计算绩效指标。
func Analyze(equity []float64, trades []Trade, periodsPerYear int) Result {
	if periodsPerYear <= 0 {
		periodsPerYear = defaultPeriodsPerYear
	}

	result := Result{TotalTrades: len(trades)}
	if len(equity) > 0 {
		result.TotalReturn = totalReturn(equity)
		result.AnnualizedReturn = annualize(result.TotalReturn, len(equity)-1, periodsPerYear)
		result.MaxDrawdown = computeDrawdown(equity)
		result.SharpeRatio = computeSharpe(periodReturns(equity), periodsPerYear)
	}

	var (
		wins, losses        int
		grossWin, grossLoss float64
	)
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			wins++
			grossWin += t.PnL
		case t.PnL < 0:
			losses++
			grossLoss += t.PnL
		}
	}

	if len(trades) > 0 {
		result.WinRate = float64(wins) / float64(len(trades))
	}
	if wins > 0 {
		result.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		result.AvgLoss = grossLoss / float64(losses)
	}
	switch {
	case losses > 0:
		result.ProfitFactor = grossWin / math.Abs(grossLoss)
	case wins > 0:
		result.ProfitFactor = math.Inf(1)
	}

	return result
}

func totalReturn(equity []float64) float64 {
	initial := equity[0]
	final := equity[len(equity)-1]
	if initial <= 0 {
		return 0
	}
	return final/initial - 1
}

func annualize(total float64, periods, periodsPerYear int) float64 {
	if periods <= 0 {
		return 0
	}
	base := 1 + total
	if base <= 0 {
		return -1
	}
	return math.Pow(base, float64(periodsPerYear)/float64(periods)) - 1
}

func periodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i]/prev-1)
	}
	return returns
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}

func computeSharpe(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 || math.IsNaN(std) {
		return 0
	}

	return (mean / std) * math.Sqrt(float64(periodsPerYear))
}
