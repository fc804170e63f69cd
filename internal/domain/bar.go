package domain

import (
	"fmt"
	"math"
	"time"
)

// Bar 代表单根K线，加载后不再修改。
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    float64
	// Extra 保存数据源附带的其他字段，原样透传。
	Extra map[string]float64
}

// Series 为按时间严格升序排列的K线序列。
type Series struct {
	ID   string
	Bars []Bar
}

// NewSeries 创建序列并校验时间顺序。
func NewSeries(id string, bars []Bar) (Series, error) {
	s := Series{ID: id, Bars: bars}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Len 返回K线数量。
func (s Series) Len() int {
	return len(s.Bars)
}

// Validate 校验序列非空、时间严格递增且收盘价为正。
func (s Series) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("序列 %q 为空: %w", s.ID, ErrInsufficientData)
	}
	for i, bar := range s.Bars {
		if math.IsNaN(bar.Close) || bar.Close <= 0 {
			return fmt.Errorf("序列 %q 第 %d 根K线收盘价无效 (%.6f): %w", s.ID, i, bar.Close, ErrConfiguration)
		}
		if i > 0 && !bar.Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("序列 %q 第 %d 根K线时间未严格递增: %w", s.ID, i, ErrConfiguration)
		}
	}
	return nil
}

// Truncate 返回截止到下标 i（含）的前缀序列。
func (s Series) Truncate(i int) Series {
	if i < 0 {
		return Series{ID: s.ID}
	}
	if i >= len(s.Bars) {
		i = len(s.Bars) - 1
	}
	bars := make([]Bar, i+1)
	copy(bars, s.Bars[:i+1])
	return Series{ID: s.ID, Bars: bars}
}

// Closes 提取收盘价序列。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.Close
	}
	return out
}

// Highs 提取最高价序列。
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.High
	}
	return out
}

// Lows 提取最低价序列。
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.Low
	}
	return out
}

// Key 返回用于缓存的序列标识，包含长度与末根时间。
func (s Series) Key() string {
	if len(s.Bars) == 0 {
		return s.ID + ":0"
	}
	return fmt.Sprintf("%s:%d:%d", s.ID, len(s.Bars), s.Bars[len(s.Bars)-1].Timestamp.UnixNano())
}
