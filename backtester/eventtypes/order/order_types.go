package order

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	errSymbolUnset       = errors.New("order symbol unset")
	errSizeUnset         = errors.New("order size unset")
	errDirectionMismatch = errors.New("order size sign does not match direction")
	errInvalidDirection  = errors.New("invalid order direction")
)

// Direction is the side of an order
type Direction uint8

// Direction values
const (
	Long Direction = iota
	Short
	Flat
)

// Validity controls when an order is eligible to fill
type Validity uint8

// Validity values
const (
	DAY Validity = iota
	GTC
	OPG
	MOC
)

// Type is derived from which prices are set on an order
type Type uint8

// Type values
const (
	Market Type = iota
	Limit
	Stop
	StopLimit
	MarketFlat
)

// Status is the lifecycle state of a pending order
type Status uint8

// Status values
const (
	OK Status = iota
	Filled
	InsufficientCapital
	NotFound
	InvalidTradeParameters
	InvalidAccount
	InvalidVolume
	InvalidPrice
	InvalidStop
	SymbolNotLoaded
	OffQuotes
	UnknownSymbol
	Requote
)

// Order is a request to trade. Size is signed, positive for Long and
// negative for Short. A Flat order carries no size until it is resolved
// against the current position.
type Order struct {
	ID          int64
	Symbol      string
	Direction   Direction
	Size        int64
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	Validity    Validity
	Created     time.Time
	AccountName string
	AgentID     string
	Comment     string
}

// Pending wraps an Order with its lifecycle state inside the order book
type Pending struct {
	mtx          sync.Mutex
	order        Order
	status       Status
	cancelled    bool
	account      string
	originalSize int64
	filledSize   int64
	validator    func(*Order) Status
	onCancel     []func(*Pending)
	onUpdate     []func(*Pending)
}
