package exchange

import (
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
)

// OnGotOrder registers a listener for orders accepted into the book
func (b *OrderBook) OnGotOrder(fn func(*order.Pending)) {
	b.mtx.Lock()
	b.onGotOrder = append(b.onGotOrder, fn)
	b.mtx.Unlock()
}

// OnFill registers a listener for trades
func (b *OrderBook) OnFill(fn func(fill.Trade, *order.Pending)) {
	b.mtx.Lock()
	b.onFill = append(b.onFill, fn)
	b.mtx.Unlock()
}

// OnCancel registers a listener for cancelled orders
func (b *OrderBook) OnCancel(fn func(*order.Pending)) {
	b.mtx.Lock()
	b.onCancel = append(b.onCancel, fn)
	b.mtx.Unlock()
}

// OnUpdate registers a listener for updated orders
func (b *OrderBook) OnUpdate(fn func(*order.Pending)) {
	b.mtx.Lock()
	b.onUpdate = append(b.onUpdate, fn)
	b.mtx.Unlock()
}

func (b *OrderBook) find(id int64) *order.Pending {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, ao := range b.accounts {
		for _, p := range ao.orders {
			if p.ID() == id {
				return p
			}
		}
	}
	return nil
}

// CancelOrder cancels a pending order by id
func (b *OrderBook) CancelOrder(id int64) order.Status {
	p := b.find(id)
	if p == nil {
		return order.NotFound
	}
	p.Cancel()
	return order.OK
}

// UpdateOrder applies fn to a pending order by id. The order is
// revalidated and cancelled if it no longer passes.
func (b *OrderBook) UpdateOrder(id int64, fn func(*order.Order)) order.Status {
	p := b.find(id)
	if p == nil {
		return order.NotFound
	}
	return p.Update(fn)
}

// CancelAll cancels every pending order and returns how many were cancelled
func (b *OrderBook) CancelAll() int {
	var all []*order.Pending
	b.mtx.Lock()
	for _, ao := range b.accounts {
		all = append(all, ao.orders...)
	}
	b.mtx.Unlock()
	var n int
	for _, p := range all {
		if p.Cancel() {
			n++
		}
	}
	return n
}

// PendingOrders returns the pending orders of an account, or of the
// default account when name is empty
func (b *OrderBook) PendingOrders(name string) ([]*order.Pending, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	ao := b.accounts[0]
	if name != "" {
		var ok bool
		if ao, ok = b.byName[name]; !ok {
			return nil, ErrAccountNotRegistered
		}
	}
	resp := make([]*order.Pending, len(ao.orders))
	copy(resp, ao.orders)
	return resp, nil
}

// PendingCount returns the number of orders in the book
func (b *OrderBook) PendingCount() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.pendingCount
}

// Trades returns every account's trades in account registration order
func (b *OrderBook) Trades() []fill.Trade {
	var resp []fill.Trade
	for _, a := range b.Accounts() {
		resp = append(resp, a.Trades()...)
	}
	return resp
}

// Book returns a copy of the depth book for a symbol
func (b *OrderBook) Book(symbol string) (tick.Book, bool) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	book, ok := b.books[symbol]
	return book, ok
}

// Reset cancels every order and returns the book and its accounts to their
// initial state. Listeners stay registered.
func (b *OrderBook) Reset() {
	b.CancelAll()
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, ao := range b.accounts {
		ao.orders = nil
		ao.account.Reset()
	}
	b.pendingCount = 0
	b.simTime = time.Time{}
	b.hasOpened = make(map[string]int64)
	b.books = make(map[string]tick.Book)
}
