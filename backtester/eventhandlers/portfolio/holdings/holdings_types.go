package holdings

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	errSymbolMismatch  = errors.New("trade symbol does not match position")
	errAccountMismatch = errors.New("trade account does not match position")
)

// Position is the net holding of one symbol within one account
type Position struct {
	Symbol       string
	Account      string
	Size         int64
	AvgPrice     decimal.Decimal
	Realized     decimal.Decimal
	ContractSize decimal.Decimal
	LastPrice    decimal.Decimal
	Updated      time.Time
	TradeCount   int64
}

// Ledger holds an account's positions. It is not safe for concurrent use;
// the owning account serialises access.
type Ledger struct {
	account   string
	positions map[string]*Position
	order     []string
}
