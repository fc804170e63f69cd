package indicator

import (
	"fmt"
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"

	"strategy-lab/internal/domain"
)

// Provider 为序列计算对齐的指标值，预热期内的值为 NaN。
type Provider interface {
	Compute(series domain.Series, spec Spec) (map[string][]float64, error)
}

var _ Provider = (*Calculator)(nil)

// Calculator 基于 go-talib 计算指标，并按 (序列标识, 指标名, 参数) 缓存结果。
// 返回的切片在多个回测间只读共享，调用方不得修改。
type Calculator struct {
	mu    sync.Mutex
	cache map[string]map[string][]float64
	hits  int
}

// NewCalculator 创建 Calculator。
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]map[string][]float64),
	}
}

// Compute 计算指标，命中缓存时直接返回。
func (c *Calculator) Compute(series domain.Series, spec Spec) (map[string][]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("计算指标失败: 输入序列为空: %w", domain.ErrInsufficientData)
	}

	cacheKey := fmt.Sprintf("%s|%s|%s", series.Key(), spec.Name(), spec.params())

	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok {
		c.hits++
		c.mu.Unlock()
		return entry, nil
	}
	c.mu.Unlock()

	result := c.calculate(series, spec)

	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok {
		// 并发计算时以先写入者为准。
		result = entry
	} else {
		c.cache[cacheKey] = result
	}
	c.mu.Unlock()

	return result, nil
}

// CacheHits 返回缓存命中次数。
func (c *Calculator) CacheHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

func (c *Calculator) calculate(series domain.Series, spec Spec) map[string][]float64 {
	outputs := spec.Outputs()
	lookback := spec.Lookback()
	length := series.Len()

	// 数据不足以产出任何有效值时不调用 talib，全部视为不可用。
	if length <= lookback {
		result := make(map[string][]float64, len(outputs))
		for _, name := range outputs {
			result[name] = nanSeries(length)
		}
		return result
	}

	closes := series.Closes()
	var values [][]float64

	switch spec.Kind {
	case KindSMA:
		values = [][]float64{talib.Sma(closes, spec.Period)}
	case KindEMA:
		values = [][]float64{talib.Ema(closes, spec.Period)}
	case KindRSI:
		values = [][]float64{talib.Rsi(closes, spec.Period)}
	case KindATR:
		values = [][]float64{talib.Atr(series.Highs(), series.Lows(), closes, spec.Period)}
	case KindMACD:
		macd, signal, hist := talib.Macd(closes, spec.Fast, spec.Slow, spec.Signal)
		values = [][]float64{macd, signal, hist}
	case KindBBands:
		upper, middle, lower := talib.BBands(closes, spec.Period, spec.StdDev, spec.StdDev, talib.SMA)
		values = [][]float64{upper, middle, lower}
	}

	result := make(map[string][]float64, len(outputs))
	for i, name := range outputs {
		result[name] = maskWarmup(values[i], lookback, length)
	}
	return result
}

func maskWarmup(values []float64, lookback, length int) []float64 {
	out := nanSeries(length)
	for i := lookback; i < length && i < len(values); i++ {
		v := values[i]
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
