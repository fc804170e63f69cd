package signal

import (
	"math/rand/v2"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/feature"
)

var _ Source = (*Random)(nil)

// Random 以给定概率随机产生买卖信号，随机数发生器由调用方注入。
// 同一个 Random 不能在并发回测间共享。
type Random struct {
	rng      *rand.Rand
	buyProb  float64
	sellProb float64
}

// NewRandom 使用固定种子创建可复现的随机信号源。
func NewRandom(seed uint64, buyProb, sellProb float64) *Random {
	return NewRandomFrom(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), buyProb, sellProb)
}

// NewRandomFrom 使用外部随机数发生器，rng 为 nil 时退化为系统随机源。
func NewRandomFrom(rng *rand.Rand, buyProb, sellProb float64) *Random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Random{rng: rng, buyProb: clamp01(buyProb), sellProb: clamp01(sellProb)}
}

func (r *Random) Evaluate(feature.Vector) domain.Action {
	x := r.rng.Float64()
	switch {
	case x < r.buyProb:
		return domain.Buy
	case x < r.buyProb+r.sellProb:
		return domain.Sell
	default:
		return domain.Hold
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
