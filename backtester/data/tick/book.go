package tick

import "fmt"

// NewBook returns an empty book for a symbol
func NewBook(symbol string) Book {
	return Book{Symbol: symbol}
}

// Update writes the tick's quote into the level named by its depth
func (b *Book) Update(t *Tick) error {
	if !t.IsValid() {
		return errInvalidTick
	}
	if t.Symbol != b.Symbol {
		return fmt.Errorf("%w: %s != %s", errSymbolMismatch, t.Symbol, b.Symbol)
	}
	if t.Depth < 0 || t.Depth >= MaxDepth {
		return fmt.Errorf("%w: %d", errDepthTooDeep, t.Depth)
	}
	if t.HasBid() {
		b.Bids[t.Depth] = Level{Price: t.Bid, Size: t.BidSize, Exchange: t.BidExchange}
	}
	if t.HasAsk() {
		b.Asks[t.Depth] = Level{Price: t.Ask, Size: t.AskSize, Exchange: t.AskExchange}
	}
	if t.IsQuote() && t.Depth >= b.depth {
		b.depth = t.Depth + 1
	}
	return nil
}

// Depth returns the number of levels that have been populated
func (b *Book) Depth() int {
	return b.depth
}

// BestBid returns the top bid level
func (b *Book) BestBid() Level {
	return b.Bids[0]
}

// BestAsk returns the top ask level
func (b *Book) BestAsk() Level {
	return b.Asks[0]
}

// Copy returns an independent copy of the book
func (b *Book) Copy() Book {
	return *b
}

// Reset clears every level
func (b *Book) Reset() {
	*b = Book{Symbol: b.Symbol}
}
