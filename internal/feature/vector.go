package feature

import (
	"math"

	"strategy-lab/internal/domain"
)

// layout 记录指标名称到下标的映射，在同一次准备中的所有向量间共享。
type layout struct {
	names []string
	index map[string]int
}

func newLayout(names []string) *layout {
	l := &layout{names: names, index: make(map[string]int, len(names))}
	for i, name := range names {
		l.index[name] = i
	}
	return l
}

// Vector 是单根K线的只读特征快照，只包含该K线及之前的数据。
type Vector struct {
	index  int
	bar    domain.Bar
	layout *layout
	values []float64
	prev   []float64
}

// NewVector 直接由指标值构造特征向量，缺失的前值视为不可用。
func NewVector(index int, bar domain.Bar, values map[string]float64) Vector {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	l := newLayout(names)
	current := make([]float64, len(names))
	prev := make([]float64, len(names))
	for i, name := range names {
		current[i] = values[name]
		prev[i] = math.NaN()
	}
	return Vector{index: index, bar: bar, layout: l, values: current, prev: prev}
}

// Index 返回K线下标。
func (v Vector) Index() int {
	return v.index
}

// Bar 返回当前K线。
func (v Vector) Bar() domain.Bar {
	return v.bar
}

// Close 返回当前收盘价。
func (v Vector) Close() float64 {
	return v.bar.Close
}

// Value 返回当前K线的指标值，缺失或 NaN 时 ok 为 false。
func (v Vector) Value(name string) (float64, bool) {
	return v.lookup(v.values, name)
}

// Prev 返回上一根K线的指标值。
func (v Vector) Prev(name string) (float64, bool) {
	return v.lookup(v.prev, name)
}

// Degraded 判断是否存在不可用的指标值。
func (v Vector) Degraded() bool {
	for _, val := range v.values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return true
		}
	}
	return false
}

// Names 返回向量包含的指标名称。
func (v Vector) Names() []string {
	if v.layout == nil {
		return nil
	}
	return append([]string(nil), v.layout.names...)
}

func (v Vector) lookup(values []float64, name string) (float64, bool) {
	if v.layout == nil {
		return 0, false
	}
	idx, ok := v.layout.index[name]
	if !ok || idx >= len(values) {
		return 0, false
	}
	val := values[idx]
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	return val, true
}
