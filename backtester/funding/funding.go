package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/portfolio/holdings"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/security"
	"github.com/thrasher-corp/tickbacktester/log"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// NewAccount validates settings and returns an account holding only cash
func NewAccount(s Settings) (*Account, error) {
	if s.Name == "" {
		return nil, errNameUnset
	}
	if s.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: %v", errNegativeBalance, s.Balance)
	}
	if s.Leverage.IsZero() {
		s.Leverage = one
	}
	if !s.Leverage.IsPositive() {
		return nil, fmt.Errorf("%w: %v", errInvalidLeverage, s.Leverage)
	}
	if s.Securities == nil {
		s.Securities = security.NewTable()
	}
	return &Account{
		name:           s.Name,
		currency:       s.Currency,
		initialBalance: s.Balance,
		balance:        s.Balance,
		leverage:       s.Leverage,
		securities:     s.Securities,
		ledger:         holdings.NewLedger(s.Name),
		latest:         make(map[string]decimal.Decimal),
	}, nil
}

// NewSubAccount returns an account that shares this account's currency,
// leverage, initial balance and security table
func (a *Account) NewSubAccount(name string) (*Account, error) {
	return NewAccount(Settings{
		Name:       name,
		Currency:   a.currency,
		Balance:    a.initialBalance,
		Leverage:   a.leverage,
		Securities: a.securities,
	})
}

// Name returns the account name
func (a *Account) Name() string {
	return a.name
}

// Currency returns the account currency
func (a *Account) Currency() string {
	return a.currency
}

// Leverage returns the account leverage
func (a *Account) Leverage() decimal.Decimal {
	return a.leverage
}

// InitialBalance returns the starting cash balance
func (a *Account) InitialBalance() decimal.Decimal {
	return a.initialBalance
}

// Securities returns the account's security table
func (a *Account) Securities() *security.Table {
	return a.securities
}

// Balance returns cash after realized profit and commission
func (a *Account) Balance() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.balance
}

// RealizedPnL returns cumulative realized profit and loss
func (a *Account) RealizedPnL() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.realized
}

// Commission returns cumulative commission paid
func (a *Account) Commission() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.commission
}

// OnPositionUpdate registers a listener called with a snapshot of the
// position after every fill
func (a *Account) OnPositionUpdate(fn func(holdings.Position)) {
	a.mtx.Lock()
	a.onPosition = append(a.onPosition, fn)
	a.mtx.Unlock()
}

// GotFill applies a trade to the account and returns the realized profit
// or loss it produced
func (a *Account) GotFill(t *fill.Trade) (decimal.Decimal, error) {
	if t.Account != "" && t.Account != a.name {
		return decimal.Zero, fmt.Errorf("%w: %s != %s", errWrongAccount, t.Account, a.name)
	}
	contract := one
	if sec, err := a.securities.Get(t.Symbol); err == nil {
		contract = sec.ContractSize
	}

	a.mtx.Lock()
	p := a.ledger.Get(t.Symbol, contract)
	realized, err := p.Adjust(t)
	if err != nil {
		a.mtx.Unlock()
		return decimal.Zero, err
	}
	a.realized = a.realized.Add(realized)
	a.commission = a.commission.Add(t.Commission)
	a.balance = a.balance.Add(realized).Sub(t.Commission)
	if _, ok := a.latest[t.Symbol]; !ok {
		a.latest[t.Symbol] = t.Price
	}
	a.trades = append(a.trades, *t)
	snapshot := *p
	listeners := a.onPosition
	a.mtx.Unlock()

	log.Debugf(log.Account, "%s fill %s realized %v balance %v", a.name, t, realized, a.Balance())
	for _, fn := range listeners {
		fn(snapshot)
	}
	return realized, nil
}

// OnTick records the latest price for the tick's symbol
func (a *Account) OnTick(tk *tick.Tick) {
	price, ok := markPrice(tk)
	if !ok {
		return
	}
	a.mtx.Lock()
	a.latest[tk.Symbol] = price
	a.mtx.Unlock()
}

func markPrice(tk *tick.Tick) (decimal.Decimal, bool) {
	switch {
	case tk.HasTrade():
		return tk.Trade, true
	case tk.IsFullQuote():
		return tk.Bid.Add(tk.Ask).Div(two), true
	case tk.HasBid():
		return tk.Bid, true
	case tk.HasAsk():
		return tk.Ask, true
	}
	return decimal.Zero, false
}

// LatestPrice returns the last recorded price for a symbol
func (a *Account) LatestPrice(symbol string) (decimal.Decimal, bool) {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	p, ok := a.latest[symbol]
	return p, ok
}

// Equity is balance plus unrealized profit across all positions
func (a *Account) Equity() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.equity()
}

func (a *Account) equity() decimal.Decimal {
	e := a.balance
	for _, p := range a.ledger.Positions() {
		e = e.Add(p.Unrealized(a.latest[p.Symbol]))
	}
	return e
}

// Margin is the capital required to hold every open position
func (a *Account) Margin() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.margin()
}

func (a *Account) margin() decimal.Decimal {
	m := decimal.Zero
	for _, p := range a.ledger.Positions() {
		m = m.Add(p.Exposure(a.latest[p.Symbol]))
	}
	return m.Div(a.leverage)
}

// MarginLevel is equity as a percentage of margin. It is zero while no
// margin is in use.
func (a *Account) MarginLevel() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	m := a.margin()
	if !m.IsPositive() {
		return decimal.Zero
	}
	return a.equity().Div(m).Mul(hundred)
}

// FreeMargin is equity not committed as margin
func (a *Account) FreeMargin() decimal.Decimal {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.equity().Sub(a.margin())
}

// Position returns a snapshot of a symbol's position
func (a *Account) Position(symbol string) (holdings.Position, bool) {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	p, ok := a.ledger.Lookup(symbol)
	if !ok {
		return holdings.Position{}, false
	}
	return *p, true
}

// PositionSize returns the net size held for a symbol
func (a *Account) PositionSize(symbol string) int64 {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.ledger.Size(symbol)
}

// Positions returns snapshots of every position
func (a *Account) Positions() []holdings.Position {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	ps := a.ledger.Positions()
	resp := make([]holdings.Position, len(ps))
	for i := range ps {
		resp[i] = *ps[i]
	}
	return resp
}

// Trades returns a copy of the account's trades
func (a *Account) Trades() []fill.Trade {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	resp := make([]fill.Trade, len(a.trades))
	copy(resp, a.trades)
	return resp
}

// Reset returns the account to its initial cash state
func (a *Account) Reset() {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.balance = a.initialBalance
	a.realized = decimal.Zero
	a.commission = decimal.Zero
	a.ledger = holdings.NewLedger(a.name)
	a.latest = make(map[string]decimal.Decimal)
	a.trades = nil
}
