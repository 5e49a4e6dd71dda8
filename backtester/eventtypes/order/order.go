package order

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

var lastID atomic.Int64

// NextID returns a unique, strictly increasing order id seeded from the
// nanosecond clock
func NextID() int64 {
	for {
		last := lastID.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastID.CompareAndSwap(last, next) {
			return next
		}
	}
}

// New returns an order for the absolute size, signed by direction
func New(symbol string, d Direction, size int64) Order {
	if size < 0 {
		size = -size
	}
	if d == Short {
		size = -size
	}
	return Order{Symbol: symbol, Direction: d, Size: size}
}

// Type derives the order type from its direction and prices
func (o *Order) Type() Type {
	if o.Direction == Flat {
		return MarketFlat
	}
	hasLimit := !o.LimitPrice.IsZero()
	hasStop := !o.StopPrice.IsZero()
	switch {
	case hasLimit && hasStop:
		return StopLimit
	case hasLimit:
		return Limit
	case hasStop:
		return Stop
	default:
		return Market
	}
}

// IsLong returns whether the order buys
func (o *Order) IsLong() bool {
	return o.Size > 0
}

// AbsSize returns the unsigned order size
func (o *Order) AbsSize() int64 {
	if o.Size < 0 {
		return -o.Size
	}
	return o.Size
}

// IsValid checks order integrity
func (o *Order) IsValid() bool {
	return o.Validate() == nil
}

// Validate returns why an order fails its integrity check
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return errSymbolUnset
	}
	if o.Size == 0 {
		return errSizeUnset
	}
	switch o.Direction {
	case Long:
		if o.Size < 0 {
			return fmt.Errorf("%w: long %d", errDirectionMismatch, o.Size)
		}
	case Short:
		if o.Size > 0 {
			return fmt.Errorf("%w: short %d", errDirectionMismatch, o.Size)
		}
	case Flat:
	default:
		return fmt.Errorf("%w: %d", errInvalidDirection, o.Direction)
	}
	return nil
}

func (o *Order) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s %s %d", o.ID, o.Type(), o.Symbol, o.Size)
	if !o.LimitPrice.IsZero() {
		fmt.Fprintf(&sb, " limit %v", o.LimitPrice)
	}
	if !o.StopPrice.IsZero() {
		fmt.Fprintf(&sb, " stop %v", o.StopPrice)
	}
	fmt.Fprintf(&sb, " %s", o.Validity)
	return sb.String()
}

// Triggered reports whether a price satisfies the order's limit and stop
// conditions. Market orders always trigger.
func (o *Order) Triggered(p decimal.Decimal) bool {
	long := o.IsLong()
	if !o.LimitPrice.IsZero() {
		if long && p.GreaterThan(o.LimitPrice) {
			return false
		}
		if !long && p.LessThan(o.LimitPrice) {
			return false
		}
	}
	if !o.StopPrice.IsZero() {
		if long && p.GreaterThan(o.StopPrice) {
			return false
		}
		if !long && p.LessThan(o.StopPrice) {
			return false
		}
	}
	return true
}
