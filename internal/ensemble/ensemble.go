// Package ensemble 将多个信号源的投票聚合为单根K线的交易决策。
package ensemble

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
	"strategy-lab/internal/signal"
)

// Vote 为单个信号源的投票。
type Vote struct {
	Source string
	Action domain.Action
	Weight float64
}

// Decision 为一根K线的聚合决策。
type Decision struct {
	Action domain.Action
	Votes  []Vote
}

type member struct {
	name   string
	source signal.Source
	weight float64
}

// MemberOption 调整成员参数。
type MemberOption func(*member)

// WithWeight 设置成员在 Weighted 策略下的权重。
func WithWeight(w float64) MemberOption {
	return func(m *member) {
		m.weight = w
	}
}

// Ensemble 持有有序的信号源集合，首次 Decide 后成员被冻结。
type Ensemble struct {
	policy  Policy
	mu      sync.Mutex
	members []member
	frozen  atomic.Bool
}

// New 创建空的 Ensemble。
func New(policy Policy) *Ensemble {
	return &Ensemble{policy: policy}
}

// Policy 返回聚合策略。
func (e *Ensemble) Policy() Policy {
	return e.policy
}

// Len 返回成员数量。
func (e *Ensemble) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.members)
}

// Names 返回成员名称，按加入顺序。
func (e *Ensemble) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.name
	}
	return names
}

// Add 追加信号源，运行开始后调用返回配置错误。
func (e *Ensemble) Add(name string, source signal.Source, opts ...MemberOption) error {
	if e.frozen.Load() {
		return fmt.Errorf("ensemble: 运行开始后不能再添加信号源 %q: %w", name, domain.ErrConfiguration)
	}
	if source == nil {
		return fmt.Errorf("ensemble: 信号源 %q 不能为空: %w", name, domain.ErrConfiguration)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("ensemble: 信号源名称不能为空: %w", domain.ErrConfiguration)
	}

	m := member{name: name, source: source, weight: 1}
	for _, opt := range opts {
		opt(&m)
	}
	if m.weight <= 0 || math.IsNaN(m.weight) || math.IsInf(m.weight, 0) {
		return fmt.Errorf("ensemble: 信号源 %q 权重必须为正，当前 %v: %w", name, m.weight, domain.ErrConfiguration)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen.Load() {
		return fmt.Errorf("ensemble: 运行开始后不能再添加信号源 %q: %w", name, domain.ErrConfiguration)
	}
	for _, existing := range e.members {
		if existing.name == name {
			return fmt.Errorf("ensemble: 信号源名称重复 %q: %w", name, domain.ErrConfiguration)
		}
	}
	e.members = append(e.members, m)
	return nil
}

// Freeze 冻结成员集合，成员为空时返回配置错误。
func (e *Ensemble) Freeze() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.members) == 0 {
		return errEmpty
	}
	e.frozen.Store(true)
	return nil
}

// Frozen 报告成员集合是否已冻结。
func (e *Ensemble) Frozen() bool {
	return e.frozen.Load()
}

var errEmpty = fmt.Errorf("ensemble: 至少需要一个信号源: %w", domain.ErrConfiguration)

// Decide 收集所有信号源的投票并按策略归并，不产生任何组合侧的副作用。
func (e *Ensemble) Decide(v feature.Vector) (Decision, error) {
	if !e.frozen.Load() {
		if err := e.Freeze(); err != nil {
			return Decision{Action: domain.Hold}, err
		}
	}

	// 冻结后 members 不再变化，可以无锁读取。
	votes := make([]Vote, 0, len(e.members))
	for _, m := range e.members {
		action, err := signal.Evaluate(m.source, v)
		if err != nil {
			return Decision{Action: domain.Hold}, fmt.Errorf("ensemble: 信号源 %q: %w", m.name, err)
		}
		votes = append(votes, Vote{Source: m.name, Action: action, Weight: m.weight})
	}

	return Decision{Action: reduce(e.policy, votes), Votes: votes}, nil
}
