package costmodel

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
)

var (
	errNegativeCost    = errors.New("costs cannot be negative")
	errNegativeLatency = errors.New("latency cannot be negative")
	errInvalidStopOut  = errors.New("stop out level must be positive")
)

// CostModel supplies the execution costs the order book applies to a fill.
// Spread and slippage are in pips, commission is per unit traded.
type CostModel interface {
	GetSpread(*order.Order) decimal.Decimal
	GetSlippage(*order.Order) decimal.Decimal
	GetCommission(*order.Order) decimal.Decimal
	GetLatencyInMilliseconds(*order.Order) int64
	StopOutLevel() decimal.Decimal
}

// Fixed applies the same costs to every order
type Fixed struct {
	Spread     decimal.Decimal `mapstructure:"spread"`
	Slippage   decimal.Decimal `mapstructure:"slippage"`
	Commission decimal.Decimal `mapstructure:"commission"`
	LatencyMS  int64           `mapstructure:"latency-ms"`
	StopOut    decimal.Decimal `mapstructure:"stop-out-level"`
}

// PerSymbol applies symbol specific costs, falling back to a default
type PerSymbol struct {
	Default   *Fixed
	Overrides map[string]*Fixed
}
