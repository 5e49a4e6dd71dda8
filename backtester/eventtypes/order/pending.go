package order

import "time"

// NewPending wraps an order for tracking by the order book
func NewPending(o Order) *Pending {
	return &Pending{
		order:        o,
		originalSize: o.Size,
	}
}

// Stamp assigns an id and creation time to an order that has none
func (p *Pending) Stamp(now time.Time) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.order.ID == 0 {
		p.order.ID = NextID()
	}
	if p.order.Created.IsZero() {
		p.order.Created = now
	}
}

// Order returns a copy of the wrapped order
func (p *Pending) Order() Order {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.order
}

// ID returns the order id
func (p *Pending) ID() int64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.order.ID
}

// Symbol returns the order symbol
func (p *Pending) Symbol() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.order.Symbol
}

// Status returns the current status
func (p *Pending) Status() Status {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.status
}

// SetStatus sets the current status
func (p *Pending) SetStatus(s Status) {
	p.mtx.Lock()
	p.status = s
	p.mtx.Unlock()
}

// IsCancelled returns whether the order has been cancelled
func (p *Pending) IsCancelled() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.cancelled
}

// IsTerminal returns whether the order can no longer fill
func (p *Pending) IsTerminal() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.cancelled || p.status != OK
}

// Account returns the owning account name
func (p *Pending) Account() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.account
}

// Claim records the owning account name. It fails when the order already
// belongs to an account.
func (p *Pending) Claim(name string) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.account != "" {
		return false
	}
	p.account = name
	p.order.AccountName = name
	return true
}

// OriginalSize is the signed size the order was submitted with
func (p *Pending) OriginalSize() int64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.originalSize
}

// FilledSize is the signed size filled so far
func (p *Pending) FilledSize() int64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.filledSize
}

// Remaining is the signed size still to fill
func (p *Pending) Remaining() int64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.order.Size
}

// Fill records a signed fill size and returns whether the order is now
// completely filled
func (p *Pending) Fill(size int64) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.filledSize += size
	p.order.Size -= size
	return p.order.Size == 0
}

// Resize replaces the remaining and original size before the order is
// booked
func (p *Pending) Resize(size int64) {
	p.mtx.Lock()
	p.order.Size = size
	p.originalSize = size
	p.mtx.Unlock()
}

// SetValidator sets the check run after every Update
func (p *Pending) SetValidator(fn func(*Order) Status) {
	p.mtx.Lock()
	p.validator = fn
	p.mtx.Unlock()
}

// OnCancel registers a cancel listener. Listeners run in registration order.
func (p *Pending) OnCancel(fn func(*Pending)) {
	p.mtx.Lock()
	p.onCancel = append(p.onCancel, fn)
	p.mtx.Unlock()
}

// OnUpdate registers an update listener. Listeners run in registration order.
func (p *Pending) OnUpdate(fn func(*Pending)) {
	p.mtx.Lock()
	p.onUpdate = append(p.onUpdate, fn)
	p.mtx.Unlock()
}

// Cancel marks the order cancelled and notifies listeners. Only the first
// call has any effect and it returns true.
func (p *Pending) Cancel() bool {
	p.mtx.Lock()
	if p.cancelled {
		p.mtx.Unlock()
		return false
	}
	p.cancelled = true
	listeners := p.onCancel
	p.mtx.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
	return true
}

// CancelWithStatus sets the status and cancels
func (p *Pending) CancelWithStatus(s Status) bool {
	p.mtx.Lock()
	if p.cancelled {
		p.mtx.Unlock()
		return false
	}
	p.status = s
	p.mtx.Unlock()
	return p.Cancel()
}

// Update mutates the wrapped order, notifies listeners and revalidates.
// An order that fails validation is cancelled with the failing status.
func (p *Pending) Update(fn func(*Order)) Status {
	p.mtx.Lock()
	if p.cancelled {
		p.mtx.Unlock()
		return p.Status()
	}
	fn(&p.order)
	p.originalSize = p.filledSize + p.order.Size
	validator := p.validator
	listeners := p.onUpdate
	o := p.order
	p.mtx.Unlock()

	for _, l := range listeners {
		l(p)
	}

	status := OK
	if validator != nil {
		status = validator(&o)
	} else if !o.IsValid() {
		status = InvalidTradeParameters
	}
	if status != OK {
		p.CancelWithStatus(status)
	}
	return status
}
