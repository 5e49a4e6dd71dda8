package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
	"github.com/thrasher-corp/tickbacktester/backtester/funding"
	"github.com/thrasher-corp/tickbacktester/log"
)

var half = decimal.NewFromFloat(0.5)

// NewOrderBook returns an order book with the supplied default account
func NewOrderBook(def *funding.Account, cm costmodel.CostModel, s Settings) (*OrderBook, error) {
	if def == nil {
		return nil, errNilAccount
	}
	if cm == nil {
		return nil, errNilCostModel
	}
	if s.MOCTime == 0 {
		s.MOCTime = common.MarketOnCloseTime
	}
	b := &OrderBook{
		costModel: cm,
		settings:  s,
		byName:    make(map[string]*accountOrders),
		hasOpened: make(map[string]int64),
		books:     make(map[string]tick.Book),
	}
	ao := &accountOrders{account: def}
	b.accounts = append(b.accounts, ao)
	b.byName[def.Name()] = ao
	return b, nil
}

// RegisterAccount adds an account to the order book
func (b *OrderBook) RegisterAccount(a *funding.Account) error {
	if a == nil {
		return errNilAccount
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if _, ok := b.byName[a.Name()]; ok {
		return fmt.Errorf("%w: %s", errAccountAlreadyRegistered, a.Name())
	}
	ao := &accountOrders{account: a}
	b.accounts = append(b.accounts, ao)
	b.byName[a.Name()] = ao
	return nil
}

// GetAccount returns a registered account
func (b *OrderBook) GetAccount(name string) (*funding.Account, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if name == "" {
		return b.accounts[0].account, nil
	}
	ao, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotRegistered, name)
	}
	return ao.account, nil
}

// DefaultAccount returns the account used for orders without an account name
func (b *OrderBook) DefaultAccount() *funding.Account {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.accounts[0].account
}

// Accounts returns every registered account in registration order
func (b *OrderBook) Accounts() []*funding.Account {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	resp := make([]*funding.Account, len(b.accounts))
	for i := range b.accounts {
		resp[i] = b.accounts[i].account
	}
	return resp
}

// mustAccount must be called with the lock held
func (b *OrderBook) mustAccount(name string) *accountOrders {
	if name == "" {
		return b.accounts[0]
	}
	ao, ok := b.byName[name]
	if !ok {
		panic(fmt.Sprintf("order book: %v: %s", ErrAccountNotRegistered, name))
	}
	return ao
}

// resolveAccount returns the named account, creating a sub account of the
// default account for unknown names. Must be called with the lock held.
func (b *OrderBook) resolveAccount(name string) (*accountOrders, error) {
	if name == "" {
		return b.accounts[0], nil
	}
	if ao, ok := b.byName[name]; ok {
		return ao, nil
	}
	sub, err := b.accounts[0].account.NewSubAccount(name)
	if err != nil {
		return nil, err
	}
	ao := &accountOrders{account: sub}
	b.accounts = append(b.accounts, ao)
	b.byName[name] = ao
	log.Debugf(log.OrderBook, "created sub account %s", name)
	return ao, nil
}

// SimTime returns the timestamp of the last executed tick
func (b *OrderBook) SimTime() time.Time {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.simTime
}

// SendOrder books an order against its own account name
func (b *OrderBook) SendOrder(p *order.Pending) order.Status {
	if p == nil {
		return order.InvalidTradeParameters
	}
	return b.SendOrderAccount(p, p.Order().AccountName)
}

// SendOrderAccount validates and books an order against a named account.
// Orders that fail validation are cancelled with the failing status and
// never enter the book.
func (b *OrderBook) SendOrderAccount(p *order.Pending, account string) order.Status {
	if p == nil {
		return order.InvalidTradeParameters
	}
	if p.IsCancelled() {
		if s := p.Status(); s != order.OK {
			return s
		}
		return order.InvalidTradeParameters
	}
	if booked := p.Account(); booked != "" {
		log.Debugf(log.OrderBook, "order %d rejected: already booked to %s", p.ID(), booked)
		return order.InvalidTradeParameters
	}
	p.Stamp(b.SimTime())

	b.mtx.Lock()
	ao, err := b.resolveAccount(account)
	b.mtx.Unlock()
	if err != nil {
		log.Errorf(log.OrderBook, "order %d account %s: %v", p.ID(), account, err)
		p.CancelWithStatus(order.InvalidAccount)
		return order.InvalidAccount
	}
	acct := ao.account
	if !p.Claim(acct.Name()) {
		return order.InvalidTradeParameters
	}
	p.OnCancel(b.cancelled)
	p.OnUpdate(b.updated)
	p.SetValidator(func(o *order.Order) order.Status {
		return validate(o, acct)
	})

	o := p.Order()
	if o.Direction == order.Flat {
		size := -acct.PositionSize(o.Symbol)
		if size == 0 {
			log.Debugf(log.OrderBook, "order %d rejected: %s already flat", o.ID, o.Symbol)
			p.CancelWithStatus(order.InvalidVolume)
			return order.InvalidVolume
		}
		p.Resize(size)
		o = p.Order()
	}
	if s := validate(&o, acct); s != order.OK {
		log.Debugf(log.OrderBook, "order %s rejected: %s", &o, s)
		p.CancelWithStatus(s)
		return s
	}

	b.mtx.Lock()
	ao.orders = append(ao.orders, p)
	b.pendingCount++
	listeners := b.onGotOrder
	b.mtx.Unlock()

	log.Debugf(log.OrderBook, "%s got order %s", acct.Name(), &o)
	for _, fn := range listeners {
		fn(p)
	}
	return order.OK
}

func validate(o *order.Order, acct *funding.Account) order.Status {
	if !o.IsValid() {
		return order.InvalidTradeParameters
	}
	sec, err := acct.Securities().Get(o.Symbol)
	if err != nil {
		return order.SymbolNotLoaded
	}
	if err = sec.CheckVolume(o.Size); err != nil {
		return order.InvalidVolume
	}
	if o.LimitPrice.IsNegative() {
		return order.InvalidPrice
	}
	if o.StopPrice.IsNegative() {
		return order.InvalidStop
	}
	return order.OK
}

// cancelled is registered on every booked order
func (b *OrderBook) cancelled(p *order.Pending) {
	b.mtx.Lock()
	b.removeLocked(b.mustAccount(p.Account()), p)
	listeners := b.onCancel
	b.mtx.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

func (b *OrderBook) updated(p *order.Pending) {
	b.mtx.Lock()
	listeners := b.onUpdate
	b.mtx.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

func (b *OrderBook) removeLocked(ao *accountOrders, p *order.Pending) bool {
	for i := range ao.orders {
		if ao.orders[i] != p {
			continue
		}
		ao.orders = append(ao.orders[:i], ao.orders[i+1:]...)
		if b.pendingCount > 0 {
			b.pendingCount--
		}
		return true
	}
	return false
}

// Execute marks every account to market with the tick and matches pending
// orders on the tick's symbol. It returns the number of orders completely
// filled or removed; partial fills are not counted. The first tick of a
// symbol from the opening exchange is its open, and OPG orders only fill
// on that tick.
func (b *OrderBook) Execute(tk *tick.Tick) int {
	if !tk.IsValid() {
		return 0
	}
	b.mtx.Lock()
	b.simTime = tk.Timestamp()
	if b.isOpeningTick(tk) {
		if _, ok := b.hasOpened[tk.Symbol]; !ok {
			b.hasOpened[tk.Symbol] = tk.Key()
		}
	}
	if tk.IsQuote() {
		book, ok := b.books[tk.Symbol]
		if !ok {
			book = tick.NewBook(tk.Symbol)
		}
		if err := book.Update(tk); err != nil {
			log.Debugf(log.OrderBook, "book %s: %v", tk.Symbol, err)
		}
		b.books[tk.Symbol] = book
	}
	accounts := make([]*accountOrders, len(b.accounts))
	copy(accounts, b.accounts)
	b.mtx.Unlock()

	for _, ao := range accounts {
		ao.account.OnTick(tk)
	}

	liq := &tickLiquidity{trade: tk.Size, bid: tk.BidSize, ask: tk.AskSize}
	bidAsk := tk.IsFullQuote()
	var processed int
	for _, ao := range accounts {
		b.mtx.Lock()
		orders := make([]*order.Pending, len(ao.orders))
		copy(orders, ao.orders)
		b.mtx.Unlock()
		if len(orders) == 0 {
			continue
		}
		processed += b.executeAccount(ao, orders, tk, bidAsk, liq)
	}
	return processed
}

// isOpeningTick reports whether any side of the tick comes from the
// opening exchange
func (b *OrderBook) isOpeningTick(tk *tick.Tick) bool {
	oe := b.settings.OpeningExchange
	if oe == "" {
		return false
	}
	return tk.Exchange == oe || tk.BidExchange == oe || tk.AskExchange == oe
}

func (b *OrderBook) executeAccount(ao *accountOrders, orders []*order.Pending, tk *tick.Tick, bidAsk bool, liq *tickLiquidity) int {
	acct := ao.account
	var processed int
	margin := acct.Margin()
	if margin.IsPositive() && acct.MarginLevel().LessThanOrEqual(b.costModel.StopOutLevel()) {
		log.Warnf(log.OrderBook, "%s margin call, level %v stop out %v, cancelling %d orders",
			acct.Name(), acct.MarginLevel().StringFixed(2), b.costModel.StopOutLevel(), len(orders))
		for _, p := range orders {
			if p.CancelWithStatus(order.InsufficientCapital) {
				processed++
			}
		}
		return processed
	}

	var fills []pendingFill
	var remove []*order.Pending
	for _, p := range orders {
		if p.Symbol() != tk.Symbol {
			continue
		}
		if p.IsTerminal() {
			remove = append(remove, p)
			processed++
			continue
		}
		o := p.Order()
		trade, ok := b.match(&o, acct, tk, bidAsk, liq)
		if !ok {
			continue
		}
		if p.Fill(trade.Size) {
			p.SetStatus(order.Filled)
			remove = append(remove, p)
			processed++
		}
		fills = append(fills, pendingFill{trade: trade, pending: p})
	}

	for i := range fills {
		if _, err := acct.GotFill(&fills[i].trade); err != nil {
			log.Errorf(log.OrderBook, "%s applying fill %s: %v", acct.Name(), &fills[i].trade, err)
		}
	}
	b.mtx.Lock()
	listeners := b.onFill
	b.mtx.Unlock()
	for i := range fills {
		log.Debugf(log.Fill, "%s", &fills[i].trade)
		for _, fn := range listeners {
			fn(fills[i].trade, fills[i].pending)
		}
	}
	if len(remove) > 0 {
		b.mtx.Lock()
		for _, p := range remove {
			b.removeLocked(ao, p)
		}
		b.mtx.Unlock()
	}
	return processed
}

// match decides whether an order fills on a tick and builds the trade
func (b *OrderBook) match(o *order.Order, acct *funding.Account, tk *tick.Tick, bidAsk bool, liq *tickLiquidity) (fill.Trade, bool) {
	long := o.IsLong()
	exch := tk.Exchange
	if bidAsk {
		if long {
			exch = tk.AskExchange
		} else {
			exch = tk.BidExchange
		}
	}
	switch o.Validity {
	case order.OPG:
		if b.settings.OpeningExchange == "" || exch != b.settings.OpeningExchange {
			return fill.Trade{}, false
		}
		b.mtx.Lock()
		openKey, opened := b.hasOpened[o.Symbol]
		b.mtx.Unlock()
		if !opened || openKey != tk.Key() {
			return fill.Trade{}, false
		}
	case order.MOC:
		if tk.Time < b.settings.MOCTime {
			return fill.Trade{}, false
		}
	}

	sec, err := acct.Securities().Get(o.Symbol)
	if err != nil {
		return fill.Trade{}, false
	}

	var raw decimal.Decimal
	var avail *int64
	switch {
	case bidAsk:
		latency := time.Duration(b.costModel.GetLatencyInMilliseconds(o)) * time.Millisecond
		if o.Created.Add(latency).After(tk.Timestamp()) {
			return fill.Trade{}, false
		}
		if long {
			raw, avail = tk.Ask, &liq.ask
		} else {
			raw, avail = tk.Bid, &liq.bid
		}
	case tk.HasTrade():
		raw, avail = tk.Trade, &liq.trade
	default:
		return fill.Trade{}, false
	}

	if b.settings.HighLiquidityEOD {
		if t, ok := b.matchHighLiquidity(o, raw, tk, exch); ok {
			return t, true
		}
	}

	if *avail <= 0 {
		return fill.Trade{}, false
	}

	spread := sec.PipValue(b.costModel.GetSpread(o)).Mul(half)
	slip := sec.PipValue(b.costModel.GetSlippage(o)).Mul(half)
	price := raw
	if long {
		price = price.Add(spread)
	} else {
		price = price.Sub(spread)
	}
	if !o.Triggered(price) {
		return fill.Trade{}, false
	}
	if long {
		price = price.Add(slip)
	} else {
		price = price.Sub(slip)
	}

	size := min(*avail, o.AbsSize())
	*avail -= size
	if !long {
		size = -size
	}
	return b.newTrade(o, size, price, tk, exch), true
}

// matchHighLiquidity fills a triggered stop or limit order in full at its
// own price
func (b *OrderBook) matchHighLiquidity(o *order.Order, raw decimal.Decimal, tk *tick.Tick, exch string) (fill.Trade, bool) {
	var price decimal.Decimal
	switch o.Type() {
	case order.Limit, order.StopLimit:
		price = o.LimitPrice
	case order.Stop:
		price = o.StopPrice
	default:
		return fill.Trade{}, false
	}
	if !o.Triggered(raw) {
		return fill.Trade{}, false
	}
	return b.newTrade(o, o.Size, price, tk, exch), true
}

func (b *OrderBook) newTrade(o *order.Order, size int64, price decimal.Decimal, tk *tick.Tick, exch string) fill.Trade {
	abs := size
	if abs < 0 {
		abs = -abs
	}
	return fill.Trade{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Account:    o.AccountName,
		AgentID:    o.AgentID,
		Size:       size,
		Price:      price,
		Commission: b.costModel.GetCommission(o).Mul(decimal.NewFromInt(abs)),
		Date:       tk.Date,
		Time:       tk.Time,
		Exchange:   exch,
	}
}
