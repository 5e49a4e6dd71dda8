package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/log"
)

// CSV columns, in file order
const (
	colDate = iota
	colTime
	colTrade
	colSize
	colExchange
	colBid
	colAsk
	colBidSize
	colAskSize
	colBidExchange
	colAskExchange
	colDepth
	csvColumns
)

// CSVHeader is the optional first row of a tick CSV file
var CSVHeader = []string{"date", "time", "trade", "size", "exchange", "bid", "ask", "bidsize", "asksize", "bidexchange", "askexchange", "depth"}

// CSVReader reads ticks from a comma separated file. Trailing columns may
// be omitted and empty fields read as zero. Rows that do not parse to a
// valid tick are logged and skipped.
type CSVReader struct {
	closer  io.Closer
	r       *csv.Reader
	symbol  string
	line    int
	skipped int
}

// OpenCSV opens a tick CSV file for a symbol
func OpenCSV(path, symbol string) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewCSVReader(f, symbol)
	r.closer = f
	return r, nil
}

// NewCSVReader reads ticks for a symbol from r
func NewCSVReader(r io.Reader, symbol string) *CSVReader {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	c.ReuseRecord = true
	return &CSVReader{r: c, symbol: symbol}
}

// Next returns the next tick
func (c *CSVReader) Next() (*tick.Tick, error) {
	for {
		row, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		c.line++
		if c.line == 1 && len(row) > 0 && strings.EqualFold(row[0], CSVHeader[0]) {
			continue
		}
		t, err := parseCSVRow(row, c.symbol)
		if err != nil {
			c.skipped++
			log.Warnf(log.Data, "%s line %d skipped: %v", c.symbol, c.line, err)
			continue
		}
		return t, nil
	}
}

// Skipped returns the number of rows dropped as invalid
func (c *CSVReader) Skipped() int {
	return c.skipped
}

// Close releases the underlying file
func (c *CSVReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func parseCSVRow(row []string, symbol string) (*tick.Tick, error) {
	if len(row) < colSize+1 || len(row) > csvColumns {
		return nil, fmt.Errorf("%w: %d columns", errInvalidRow, len(row))
	}
	field := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	var err error
	t := &tick.Tick{Symbol: symbol}
	if t.Date, err = parseInt(field(colDate)); err != nil {
		return nil, err
	}
	if t.Time, err = parseInt(field(colTime)); err != nil {
		return nil, err
	}
	if t.Trade, err = parseDecimal(field(colTrade)); err != nil {
		return nil, err
	}
	if t.Size, err = parseInt64(field(colSize)); err != nil {
		return nil, err
	}
	t.Exchange = field(colExchange)
	if t.Bid, err = parseDecimal(field(colBid)); err != nil {
		return nil, err
	}
	if t.Ask, err = parseDecimal(field(colAsk)); err != nil {
		return nil, err
	}
	if t.BidSize, err = parseInt64(field(colBidSize)); err != nil {
		return nil, err
	}
	if t.AskSize, err = parseInt64(field(colAskSize)); err != nil {
		return nil, err
	}
	t.BidExchange = field(colBidExchange)
	t.AskExchange = field(colAskExchange)
	if t.Depth, err = parseInt(field(colDepth)); err != nil {
		return nil, err
	}
	if !t.IsValid() {
		return nil, errInvalidRow
	}
	return t, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
