package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var errNoPosition = errors.New("backtest: 当前无持仓")

// Portfolio 记录现金、持仓与逐K线净值，只由 Engine 逐根修改。
// 资金与手续费使用 decimal 记账，手续费合计与逐笔之和严格相等。
type Portfolio struct {
	initial decimal.Decimal
	cash    decimal.Decimal
	qty     decimal.Decimal
	avgCost decimal.Decimal

	rate  decimal.Decimal
	fixed decimal.Decimal

	entryIndex      int
	entryTime       time.Time
	entryCommission decimal.Decimal
	commission      decimal.Decimal

	equity []float64
	trades []Trade
}

// NewPortfolio 创建空仓组合。
func NewPortfolio(initialCapital float64, commission Commission) *Portfolio {
	capital := decimal.NewFromFloat(initialCapital)
	return &Portfolio{
		initial: capital,
		cash:    capital,
		rate:    decimal.NewFromFloat(commission.Rate),
		fixed:   decimal.NewFromFloat(commission.Fixed),
	}
}

// State 返回当前持仓状态。
func (p *Portfolio) State() State {
	switch p.qty.Sign() {
	case 1:
		return StateLong
	case -1:
		return StateShort
	default:
		return StateFlat
	}
}

// Cash 返回现金余额。
func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// Position 返回当前持仓。
func (p *Portfolio) Position() Position {
	return Position{Quantity: p.qty.InexactFloat64(), AvgCost: p.avgCost.InexactFloat64()}
}

// Value 以给定价格计算净值：现金加持仓市值。
func (p *Portfolio) Value(price float64) float64 {
	return p.cash.Add(p.qty.Mul(decimal.NewFromFloat(price))).InexactFloat64()
}

// Quantity 按资金比例计算可开仓的整数数量，已计入手续费。
func (p *Portfolio) Quantity(price, fraction float64) decimal.Decimal {
	if price <= 0 || fraction <= 0 {
		return decimal.Zero
	}
	budget := p.cash.Mul(decimal.NewFromFloat(fraction)).Sub(p.fixed)
	if budget.Sign() <= 0 {
		return decimal.Zero
	}
	unitCost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(1).Add(p.rate))
	qty := budget.Div(unitCost).Floor()
	// Div 按有限精度舍入，数量需满足 qty*unitCost <= budget。
	for qty.Sign() > 0 && qty.Mul(unitCost).GreaterThan(budget) {
		qty = qty.Sub(decimal.NewFromInt(1))
	}
	return qty
}

// Open 按给定方向与价格开仓。
func (p *Portfolio) Open(side Side, qty decimal.Decimal, price float64, index int, ts time.Time) error {
	if p.State() != StateFlat {
		return fmt.Errorf("backtest: 已有持仓，无法重复开仓")
	}
	if qty.Sign() <= 0 {
		return fmt.Errorf("backtest: 开仓数量必须为正，当前 %s", qty)
	}

	px := decimal.NewFromFloat(price)
	notional := qty.Mul(px)
	fee := p.fee(notional)

	switch side {
	case SideLong:
		p.cash = p.cash.Sub(notional).Sub(fee)
		p.qty = qty
	case SideShort:
		p.cash = p.cash.Add(notional).Sub(fee)
		p.qty = qty.Neg()
	default:
		return fmt.Errorf("backtest: 未知方向 %q", side)
	}

	p.avgCost = px
	p.entryIndex = index
	p.entryTime = ts
	p.entryCommission = fee
	p.commission = p.commission.Add(fee)
	return nil
}

// Close 以给定价格平掉全部持仓并生成交易记录。
func (p *Portfolio) Close(price float64, index int, ts time.Time) (Trade, error) {
	state := p.State()
	if state == StateFlat {
		return Trade{}, errNoPosition
	}

	px := decimal.NewFromFloat(price)
	units := p.qty.Abs()
	notional := units.Mul(px)
	fee := p.fee(notional)

	var gross decimal.Decimal
	side := SideLong
	if state == StateLong {
		p.cash = p.cash.Add(notional).Sub(fee)
		gross = px.Sub(p.avgCost).Mul(units)
	} else {
		side = SideShort
		p.cash = p.cash.Sub(notional).Sub(fee)
		gross = p.avgCost.Sub(px).Mul(units)
	}

	fees := p.entryCommission.Add(fee)
	trade := Trade{
		Side:       side,
		EntryIndex: p.entryIndex,
		ExitIndex:  index,
		EntryTime:  p.entryTime,
		ExitTime:   ts,
		Quantity:   units.InexactFloat64(),
		EntryPrice: p.avgCost.InexactFloat64(),
		ExitPrice:  price,
		Commission: fees.InexactFloat64(),
		PnL:        gross.Sub(fees).InexactFloat64(),
	}

	p.commission = p.commission.Add(fee)
	p.qty = decimal.Zero
	p.avgCost = decimal.Zero
	p.entryCommission = decimal.Zero
	p.entryTime = time.Time{}
	p.trades = append(p.trades, trade)
	return trade, nil
}

// Record 以收盘价记录当根K线净值。
func (p *Portfolio) Record(price float64) float64 {
	v := p.Value(price)
	p.equity = append(p.equity, v)
	return v
}

// Carry 沿用上一根K线的净值，首根K线使用初始资金。
func (p *Portfolio) Carry() float64 {
	v := p.initial.InexactFloat64()
	if n := len(p.equity); n > 0 {
		v = p.equity[n-1]
	}
	p.equity = append(p.equity, v)
	return v
}

// restate 用当前价格重算最后一根K线的净值。
func (p *Portfolio) restate(price float64) {
	if n := len(p.equity); n > 0 {
		p.equity[n-1] = p.Value(price)
	}
}

// TotalCommission 返回已收取的全部手续费。
func (p *Portfolio) TotalCommission() float64 {
	return p.commission.InexactFloat64()
}

// OpenCommission 返回未平仓持仓的开仓手续费。
func (p *Portfolio) OpenCommission() float64 {
	return p.entryCommission.InexactFloat64()
}

// Equity 返回净值曲线副本。
func (p *Portfolio) Equity() []float64 {
	return append([]float64(nil), p.equity...)
}

// Trades 返回交易记录副本。
func (p *Portfolio) Trades() []Trade {
	return append([]Trade(nil), p.trades...)
}

func (p *Portfolio) fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(p.rate).Add(p.fixed)
}
