package ensemble

import (
	"fmt"
	"strings"

	"strategy-lab/internal/domain"
)

// Policy 决定如何把多个投票归并为一个决策。
type Policy int

const (
	// Majority 取严格多数票的动作，平票时 Hold。
	Majority Policy = iota
	// Weighted 取权重和最大的动作，平票时 Hold。
	Weighted
	// Unanimous 要求全体一致，否则 Hold。
	Unanimous
)

func (p Policy) String() string {
	switch p {
	case Majority:
		return "majority"
	case Weighted:
		return "weighted"
	case Unanimous:
		return "unanimous"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy 解析策略名称，空字符串视为 majority。
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "majority":
		return Majority, nil
	case "weighted":
		return Weighted, nil
	case "unanimous":
		return Unanimous, nil
	default:
		return Majority, fmt.Errorf("ensemble: 未知的聚合策略 %q: %w", name, domain.ErrConfiguration)
	}
}

var tally = [...]domain.Action{domain.Buy, domain.Sell, domain.Hold}

func reduce(policy Policy, votes []Vote) domain.Action {
	if len(votes) == 0 {
		return domain.Hold
	}

	switch policy {
	case Unanimous:
		first := votes[0].Action
		for _, v := range votes[1:] {
			if v.Action != first {
				return domain.Hold
			}
		}
		return first
	case Weighted:
		scores := make(map[domain.Action]float64, len(tally))
		for _, v := range votes {
			scores[v.Action] += v.Weight
		}
		return plurality(scores)
	default:
		counts := make(map[domain.Action]float64, len(tally))
		for _, v := range votes {
			counts[v.Action]++
		}
		return plurality(counts)
	}
}

// plurality 返回得分唯一最高的动作，最高分并列时返回 Hold。
func plurality(scores map[domain.Action]float64) domain.Action {
	best := domain.Hold
	bestScore := -1.0
	tied := false
	for _, action := range tally {
		score := scores[action]
		switch {
		case score > bestScore:
			best, bestScore, tied = action, score, false
		case score == bestScore:
			tied = true
		}
	}
	if tied {
		return domain.Hold
	}
	return best
}
