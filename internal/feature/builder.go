package feature

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/indicator"
)

// Builder 根据指标配置生成逐K线特征，可在多个回测间共享。
type Builder struct {
	provider indicator.Provider
	specs    []indicator.Spec
	names    []string
	warmup   int
	logger   *zap.Logger
}

// NewBuilder 创建特征构建器。
func NewBuilder(provider indicator.Provider, logger *zap.Logger, specs ...indicator.Spec) (*Builder, error) {
	if provider == nil {
		provider = indicator.NewCalculator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]struct{})
	names := make([]string, 0, len(specs))
	warmup := 0
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		for _, name := range spec.Outputs() {
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("feature: 指标输出名重复 %q: %w", name, domain.ErrConfiguration)
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
		if lb := spec.Lookback(); lb > warmup {
			warmup = lb
		}
	}

	return &Builder{
		provider: provider,
		specs:    append([]indicator.Spec(nil), specs...),
		names:    names,
		warmup:   warmup,
		logger:   logger,
	}, nil
}

// Warmup 返回预热窗口长度，即首个可交易K线的下标。
func (b *Builder) Warmup() int {
	return b.warmup
}

// Names 返回全部指标输出名。
func (b *Builder) Names() []string {
	return append([]string(nil), b.names...)
}

// Prepare 在回测开始前一次性计算所有指标序列。
func (b *Builder) Prepare(series domain.Series) (*Frame, error) {
	columns := make([][]float64, len(b.names))
	col := 0
	for _, spec := range b.specs {
		out, err := b.provider.Compute(series, spec)
		if err != nil {
			return nil, fmt.Errorf("feature: 计算指标 %s 失败: %w", spec.Name(), err)
		}
		for _, name := range spec.Outputs() {
			values, ok := out[name]
			if !ok {
				return nil, fmt.Errorf("feature: 指标提供者缺少输出 %q: %w", name, domain.ErrConfiguration)
			}
			if len(values) != series.Len() {
				return nil, fmt.Errorf("feature: 指标 %q 长度 %d 与序列长度 %d 不一致: %w",
					name, len(values), series.Len(), domain.ErrConfiguration)
			}
			columns[col] = values
			col++
		}
	}

	b.logger.Debug("特征序列准备完成",
		zap.String("series", series.ID),
		zap.Int("bars", series.Len()),
		zap.Int("indicators", len(b.names)),
		zap.Int("warmup", b.warmup),
	)

	return &Frame{
		series:  series,
		layout:  newLayout(b.Names()),
		columns: columns,
	}, nil
}

// Frame 为一次准备好的特征序列，只读。
type Frame struct {
	series  domain.Series
	layout  *layout
	columns [][]float64
}

// Len 返回K线数量。
func (f *Frame) Len() int {
	return f.series.Len()
}

// Series 返回底层K线序列。
func (f *Frame) Series() domain.Series {
	return f.series
}

// At 构造第 i 根K线的特征向量，只读取下标不大于 i 的数据。
func (f *Frame) At(i int) Vector {
	values := make([]float64, len(f.columns))
	prev := make([]float64, len(f.columns))
	for c, column := range f.columns {
		values[c] = column[i]
		if i > 0 {
			prev[c] = column[i-1]
		} else {
			prev[c] = math.NaN()
		}
	}
	return Vector{
		index:  i,
		bar:    f.series.Bars[i],
		layout: f.layout,
		values: values,
		prev:   prev,
	}
}
