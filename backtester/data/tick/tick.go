package tick

import (
	"fmt"
	"time"

	"github.com/thrasher-corp/tickbacktester/common/convert"
)

// HasTrade returns whether the tick carries a trade
func (t *Tick) HasTrade() bool {
	return t.Trade.IsPositive()
}

// HasBid returns whether the tick carries a bid quote
func (t *Tick) HasBid() bool {
	return t.Bid.IsPositive()
}

// HasAsk returns whether the tick carries an ask quote
func (t *Tick) HasAsk() bool {
	return t.Ask.IsPositive()
}

// IsTrade returns whether the tick is a trade
func (t *Tick) IsTrade() bool {
	return t.HasTrade()
}

// IsQuote returns whether the tick carries either side of a quote
func (t *Tick) IsQuote() bool {
	return t.HasBid() || t.HasAsk()
}

// IsFullQuote returns whether the tick carries both sides of a quote
func (t *Tick) IsFullQuote() bool {
	return t.HasBid() && t.HasAsk()
}

// IsValid requires a symbol and at least one populated side
func (t *Tick) IsValid() bool {
	return t != nil && t.Symbol != "" && (t.HasTrade() || t.HasBid() || t.HasAsk())
}

// Timestamp returns the tick's date and time as UTC
func (t *Tick) Timestamp() time.Time {
	return convert.DateTimeToTime(t.Date, t.Time)
}

// Key returns a sortable representation of the tick's date and time
func (t *Tick) Key() int64 {
	return convert.DateTimeKey(t.Date, t.Time)
}

func (t *Tick) String() string {
	switch {
	case t.HasTrade() && t.IsQuote():
		return fmt.Sprintf("%s %d %09d %v/%d %v@%v", t.Symbol, t.Date, t.Time, t.Trade, t.Size, t.Bid, t.Ask)
	case t.HasTrade():
		return fmt.Sprintf("%s %d %09d %v/%d", t.Symbol, t.Date, t.Time, t.Trade, t.Size)
	default:
		return fmt.Sprintf("%s %d %09d %v@%v", t.Symbol, t.Date, t.Time, t.Bid, t.Ask)
	}
}
