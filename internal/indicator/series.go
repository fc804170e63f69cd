package indicator

import "math"

// At 返回下标 i 处的值，越界时返回 NaN。
func At(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// Available 判断值是否可用。
func Available(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeDivide 除法保护，除数为0时返回0。
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
