package engine

import (
	"sort"
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
)

func newBarAggregator(tf time.Duration) *barAggregator {
	return &barAggregator{
		timeframe: tf,
		current:   make(map[string]*Bar),
	}
}

// update folds a trade into its symbol's open bar. When the trade starts a
// new period the previous bar is returned as complete. Quotes are ignored.
func (a *barAggregator) update(t *tick.Tick) (Bar, bool) {
	if !t.HasTrade() {
		return Bar{}, false
	}
	start := t.Timestamp().Truncate(a.timeframe)
	b, ok := a.current[t.Symbol]
	if ok && b.Start.Equal(start) {
		if t.Trade.GreaterThan(b.High) {
			b.High = t.Trade
		}
		if t.Trade.LessThan(b.Low) {
			b.Low = t.Trade
		}
		b.Close = t.Trade
		b.Volume += t.Size
		b.Trades++
		return Bar{}, false
	}
	var done Bar
	if ok {
		done = *b
	}
	a.current[t.Symbol] = &Bar{
		Symbol:    t.Symbol,
		Start:     start,
		Timeframe: a.timeframe,
		Open:      t.Trade,
		High:      t.Trade,
		Low:       t.Trade,
		Close:     t.Trade,
		Volume:    t.Size,
		Trades:    1,
	}
	return done, ok
}

// flush returns every open bar ordered by start then symbol
func (a *barAggregator) flush() []Bar {
	resp := make([]Bar, 0, len(a.current))
	for _, b := range a.current {
		resp = append(resp, *b)
	}
	clear(a.current)
	sort.Slice(resp, func(i, j int) bool {
		if !resp[i].Start.Equal(resp[j].Start) {
			return resp[i].Start.Before(resp[j].Start)
		}
		return resp[i].Symbol < resp[j].Symbol
	})
	return resp
}

// End returns when the bar's period closes
func (b *Bar) End() time.Time {
	return b.Start.Add(b.Timeframe)
}
