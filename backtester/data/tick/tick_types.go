package tick

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxDepth is the number of price levels a Book holds per side
const MaxDepth = 10

var (
	errSymbolMismatch = errors.New("tick symbol does not match book")
	errDepthTooDeep   = errors.New("tick depth exceeds book capacity")
	errInvalidTick    = errors.New("invalid tick")
)

// Tick is a single market event for one instrument. A tick is a trade, a
// quote or both. Ticks are treated as immutable once produced.
type Tick struct {
	Symbol string
	// Date is encoded as YYYYMMDD
	Date int
	// Time is encoded as HHMMSSmmm
	Time        int
	Trade       decimal.Decimal
	Size        int64
	Bid         decimal.Decimal
	Ask         decimal.Decimal
	BidSize     int64
	AskSize     int64
	Exchange    string
	BidExchange string
	AskExchange string
	Depth       int
}

// Level is one price level of a Book side
type Level struct {
	Price    decimal.Decimal
	Size     int64
	Exchange string
}

// Book holds the quoted depth for a symbol. Its levels are arrays, so a
// Book assigned or passed by value is a full copy and later updates to
// either copy are never visible through the other.
type Book struct {
	Symbol string
	depth  int
	Bids   [MaxDepth]Level
	Asks   [MaxDepth]Level
}
