package fill

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/common/convert"
)

// IsLong returns whether the trade bought
func (t *Trade) IsLong() bool {
	return t.Size > 0
}

// Notional returns the absolute traded value before contract size
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Size)).Abs()
}

// Timestamp returns the execution time as UTC
func (t *Trade) Timestamp() time.Time {
	return convert.DateTimeToTime(t.Date, t.Time)
}

func (t *Trade) String() string {
	return fmt.Sprintf("%d %d %09d %s %d@%v commission %v %s", t.OrderID, t.Date, t.Time, t.Symbol, t.Size, t.Price, t.Commission, t.Account)
}
