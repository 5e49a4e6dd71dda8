package costmodel

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
)

// Zero returns a cost model with no costs and the default stop out level
func Zero() *Fixed {
	return &Fixed{StopOut: decimal.NewFromInt(common.DefaultStopOutLevel)}
}

// Validate checks the model's values, defaulting an unset stop out level
func (f *Fixed) Validate() error {
	if f.Spread.IsNegative() || f.Slippage.IsNegative() || f.Commission.IsNegative() {
		return fmt.Errorf("%w spread: %v slippage: %v commission: %v", errNegativeCost, f.Spread, f.Slippage, f.Commission)
	}
	if f.LatencyMS < 0 {
		return fmt.Errorf("%w: %d", errNegativeLatency, f.LatencyMS)
	}
	if f.StopOut.IsZero() {
		f.StopOut = decimal.NewFromInt(common.DefaultStopOutLevel)
	}
	if !f.StopOut.IsPositive() {
		return fmt.Errorf("%w: %v", errInvalidStopOut, f.StopOut)
	}
	return nil
}

// GetSpread returns the spread in pips
func (f *Fixed) GetSpread(*order.Order) decimal.Decimal {
	return f.Spread
}

// GetSlippage returns the slippage in pips
func (f *Fixed) GetSlippage(*order.Order) decimal.Decimal {
	return f.Slippage
}

// GetCommission returns the per unit commission
func (f *Fixed) GetCommission(*order.Order) decimal.Decimal {
	return f.Commission
}

// GetLatencyInMilliseconds returns the order to market latency
func (f *Fixed) GetLatencyInMilliseconds(*order.Order) int64 {
	return f.LatencyMS
}

// StopOutLevel returns the margin level percentage that triggers a margin call
func (f *Fixed) StopOutLevel() decimal.Decimal {
	return f.StopOut
}

func (p *PerSymbol) lookup(o *order.Order) *Fixed {
	if f, ok := p.Overrides[o.Symbol]; ok {
		return f
	}
	for symbol, f := range p.Overrides {
		if strings.EqualFold(symbol, o.Symbol) {
			return f
		}
	}
	if p.Default == nil {
		return Zero()
	}
	return p.Default
}

// GetSpread returns the spread in pips
func (p *PerSymbol) GetSpread(o *order.Order) decimal.Decimal {
	return p.lookup(o).Spread
}

// GetSlippage returns the slippage in pips
func (p *PerSymbol) GetSlippage(o *order.Order) decimal.Decimal {
	return p.lookup(o).Slippage
}

// GetCommission returns the per unit commission
func (p *PerSymbol) GetCommission(o *order.Order) decimal.Decimal {
	return p.lookup(o).Commission
}

// GetLatencyInMilliseconds returns the order to market latency
func (p *PerSymbol) GetLatencyInMilliseconds(o *order.Order) int64 {
	return p.lookup(o).LatencyMS
}

// StopOutLevel is account wide so only the default applies
func (p *PerSymbol) StopOutLevel() decimal.Decimal {
	if p.Default == nil {
		return decimal.NewFromInt(common.DefaultStopOutLevel)
	}
	return p.Default.StopOut
}
