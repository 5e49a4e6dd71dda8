package holdings

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
)

// NewPosition returns a flat position
func NewPosition(symbol, account string, contractSize decimal.Decimal) *Position {
	if !contractSize.IsPositive() {
		contractSize = decimal.NewFromInt(1)
	}
	return &Position{
		Symbol:       symbol,
		Account:      account,
		ContractSize: contractSize,
	}
}

// IsFlat returns whether the position holds nothing
func (p *Position) IsFlat() bool {
	return p.Size == 0
}

// IsLong returns whether the position is net long
func (p *Position) IsLong() bool {
	return p.Size > 0
}

// Adjust applies a trade to the position and returns the realized profit
// or loss it closes out
func (p *Position) Adjust(t *fill.Trade) (decimal.Decimal, error) {
	if t.Symbol != p.Symbol {
		return decimal.Zero, fmt.Errorf("%w: %s != %s", errSymbolMismatch, t.Symbol, p.Symbol)
	}
	if p.Account != "" && t.Account != "" && t.Account != p.Account {
		return decimal.Zero, fmt.Errorf("%w: %s != %s", errAccountMismatch, t.Account, p.Account)
	}
	p.TradeCount++
	p.Updated = t.Timestamp()
	p.LastPrice = t.Price
	if t.Size == 0 {
		return decimal.Zero, nil
	}

	realized := decimal.Zero
	if p.Size == 0 || (p.Size > 0) == (t.Size > 0) {
		held := decimal.NewFromInt(abs(p.Size))
		added := decimal.NewFromInt(abs(t.Size))
		p.AvgPrice = p.AvgPrice.Mul(held).Add(t.Price.Mul(added)).Div(held.Add(added))
		p.Size += t.Size
		return realized, nil
	}

	closed := min(abs(p.Size), abs(t.Size))
	sign := int64(1)
	if p.Size < 0 {
		sign = -1
	}
	realized = t.Price.Sub(p.AvgPrice).
		Mul(decimal.NewFromInt(closed * sign)).
		Mul(p.ContractSize)
	previous := p.Size
	p.Size += t.Size
	switch {
	case p.Size == 0:
		p.AvgPrice = decimal.Zero
	case (previous > 0) != (p.Size > 0):
		p.AvgPrice = t.Price
	}
	p.Realized = p.Realized.Add(realized)
	return realized, nil
}

// Unrealized returns the open profit or loss at a price
func (p *Position) Unrealized(price decimal.Decimal) decimal.Decimal {
	if p.Size == 0 || price.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.AvgPrice).Mul(decimal.NewFromInt(p.Size)).Mul(p.ContractSize)
}

// Exposure returns the absolute contract value at a price
func (p *Position) Exposure(price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(abs(p.Size)).Mul(p.ContractSize).Mul(price)
}

func (p *Position) String() string {
	return fmt.Sprintf("%s %s %d@%v realized %v", p.Account, p.Symbol, p.Size, p.AvgPrice, p.Realized)
}

func abs(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}

// NewLedger returns an empty ledger for an account
func NewLedger(account string) *Ledger {
	return &Ledger{
		account:   account,
		positions: make(map[string]*Position),
	}
}

// Get returns the position for a symbol, creating it if absent
func (l *Ledger) Get(symbol string, contractSize decimal.Decimal) *Position {
	p, ok := l.positions[symbol]
	if !ok {
		p = NewPosition(symbol, l.account, contractSize)
		l.positions[symbol] = p
		l.order = append(l.order, symbol)
	}
	return p
}

// Lookup returns the position for a symbol without creating it
func (l *Ledger) Lookup(symbol string) (*Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// Positions returns every position in creation order
func (l *Ledger) Positions() []*Position {
	resp := make([]*Position, 0, len(l.order))
	for _, s := range l.order {
		resp = append(resp, l.positions[s])
	}
	return resp
}

// Size returns the net size held for a symbol
func (l *Ledger) Size(symbol string) int64 {
	if p, ok := l.positions[symbol]; ok {
		return p.Size
	}
	return 0
}
