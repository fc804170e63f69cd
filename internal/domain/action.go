package domain

import (
	"fmt"
	"strings"
)

// Action 表示交易动作。零值为 Hold。
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

// Valid 判断动作是否属于可识别的取值。
func (a Action) Valid() bool {
	return a >= Hold && a <= Sell
}

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("ACTION(%d)", int(a))
	}
}

// ParseAction 将字符串解析为动作，大小写不敏感。
func ParseAction(value string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "HOLD", "":
		return Hold, nil
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return Hold, fmt.Errorf("动作取值非法 %q: %w", value, ErrInvalidAction)
	}
}
