package source

import (
	"bufio"
	"io"
	"os"

	"github.com/buger/jsonparser"
	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/log"
)

const maxJSONLine = 1 << 20

var jsonPaths = [][]string{
	{"date"},
	{"time"},
	{"trade"},
	{"size"},
	{"exchange"},
	{"bid"},
	{"ask"},
	{"bidSize"},
	{"askSize"},
	{"bidExchange"},
	{"askExchange"},
	{"depth"},
	{"symbol"},
}

// JSONReader reads newline delimited JSON ticks. Prices may be JSON
// numbers or strings. Invalid lines are logged and skipped.
type JSONReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
	symbol  string
	line    int
	skipped int
}

// OpenJSON opens a newline delimited JSON tick file for a symbol
func OpenJSON(path, symbol string) (*JSONReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewJSONReader(f, symbol)
	r.closer = f
	return r, nil
}

// NewJSONReader reads ticks for a symbol from r
func NewJSONReader(r io.Reader, symbol string) *JSONReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxJSONLine)
	return &JSONReader{scanner: s, symbol: symbol}
}

// Next returns the next tick
func (j *JSONReader) Next() (*tick.Tick, error) {
	for j.scanner.Scan() {
		j.line++
		line := j.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t, err := parseJSONLine(line, j.symbol)
		if err != nil {
			j.skipped++
			log.Warnf(log.Data, "%s line %d skipped: %v", j.symbol, j.line, err)
			continue
		}
		return t, nil
	}
	if err := j.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Skipped returns the number of lines dropped as invalid
func (j *JSONReader) Skipped() int {
	return j.skipped
}

// Close releases the underlying file
func (j *JSONReader) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

func parseJSONLine(line []byte, symbol string) (*tick.Tick, error) {
	t := &tick.Tick{Symbol: symbol}
	var parseErr error
	jsonparser.EachKey(line, func(idx int, value []byte, vt jsonparser.ValueType, err error) {
		if err != nil {
			parseErr = err
			return
		}
		if parseErr != nil || vt == jsonparser.Null {
			return
		}
		s := string(value)
		switch idx {
		case 0:
			t.Date, parseErr = parseInt(s)
		case 1:
			t.Time, parseErr = parseInt(s)
		case 2:
			t.Trade, parseErr = decimal.NewFromString(s)
		case 3:
			t.Size, parseErr = parseInt64(s)
		case 4:
			t.Exchange = s
		case 5:
			t.Bid, parseErr = decimal.NewFromString(s)
		case 6:
			t.Ask, parseErr = decimal.NewFromString(s)
		case 7:
			t.BidSize, parseErr = parseInt64(s)
		case 8:
			t.AskSize, parseErr = parseInt64(s)
		case 9:
			t.BidExchange = s
		case 10:
			t.AskExchange = s
		case 11:
			t.Depth, parseErr = parseInt(s)
		case 12:
			if t.Symbol == "" {
				t.Symbol = s
			}
		}
	}, jsonPaths...)
	if parseErr != nil {
		return nil, parseErr
	}
	if !t.IsValid() {
		return nil, errInvalidRow
	}
	return t, nil
}
