package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
)

func writeCSV(w io.Writer, ticks []tick.Tick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range ticks {
		t := &ticks[i]
		if err := cw.Write([]string{
			strconv.Itoa(t.Date),
			strconv.Itoa(t.Time),
			t.Trade.String(),
			strconv.FormatInt(t.Size, 10),
			t.Exchange,
			t.Bid.String(),
			t.Ask.String(),
			strconv.FormatInt(t.BidSize, 10),
			strconv.FormatInt(t.AskSize, 10),
			t.BidExchange,
			t.AskExchange,
			strconv.Itoa(t.Depth),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readAll(t *testing.T, r Reader) []*tick.Tick {
	t.Helper()
	var resp []*tick.Tick
	for {
		tk, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		resp = append(resp, tk)
	}
	require.NoError(t, r.Close())
	return resp
}

func TestParseMeta(t *testing.T) {
	t.Parallel()
	m, err := ParseMeta("/data/EUR_USD_20240102.csv")
	require.NoError(t, err)
	assert.Equal(t, "EUR_USD", m.Symbol)
	assert.Equal(t, 20240102, m.Date)
	assert.Equal(t, common.CSVStr, m.Format)
	assert.Equal(t, "/data/EUR_USD_20240102.csv", m.Path)

	m, err = ParseMeta("SPY_20240103.jsonl")
	require.NoError(t, err)
	assert.Equal(t, common.JSONStr, m.Format)

	for _, bad := range []string{"SPY", "SPY_20240102", "_20240102.csv", "SPY_.csv", "SPY_2024010x.csv", "SPY_20241301.csv"} {
		_, err = ParseMeta(bad)
		assert.True(t, errors.Is(err, ErrInvalidFileName), bad)
	}
	_, err = ParseMeta("SPY_20240102.parquet")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestCSVReader(t *testing.T) {
	t.Parallel()
	data := strings.Join([]string{
		strings.Join(CSVHeader, ","),
		"20240102,93000000,1.2,100,NYS",
		"20240102,93000001,,,,1.1,1.3,5,6,ARCA,BATS,1",
	}, "\n")
	ticks := readAll(t, NewCSVReader(strings.NewReader(data), "EURUSD"))
	require.Len(t, ticks, 2)
	assert.True(t, ticks[0].IsTrade())
	assert.Equal(t, "NYS", ticks[0].Exchange)
	assert.Equal(t, int64(100), ticks[0].Size)
	assert.True(t, ticks[1].IsFullQuote())
	assert.Equal(t, "BATS", ticks[1].AskExchange)
	assert.Equal(t, 1, ticks[1].Depth)
	assert.Equal(t, "EURUSD", ticks[1].Symbol)

	_, err := parseCSVRow([]string{"20240102", "93000000", "abc", "1"}, "EURUSD")
	assert.Error(t, err)

	_, err = parseCSVRow([]string{"20240102"}, "EURUSD")
	assert.True(t, errors.Is(err, errInvalidRow))

	_, err = parseCSVRow([]string{"20240102", "93000000", "0", "0"}, "EURUSD")
	assert.True(t, errors.Is(err, errInvalidRow), "tick without a populated side")
}

func TestCSVReaderSkipsInvalidRows(t *testing.T) {
	t.Parallel()
	data := strings.Join([]string{
		"20240102,93000000,1.2,100,NYS",
		"20240102,93000001,abc,1",
		"20240102",
		"20240102,93000002,0,0",
		"20240102,93000003,1.3,50,NYS",
	}, "\n")
	r := NewCSVReader(strings.NewReader(data), "EURUSD")
	ticks := readAll(t, r)
	require.Len(t, ticks, 2, "valid rows either side of bad ones must still be read")
	assert.Equal(t, 93000000, ticks[0].Time)
	assert.Equal(t, 93000003, ticks[1].Time)
	assert.Equal(t, 3, r.Skipped())

	r = NewCSVReader(strings.NewReader("20240102,93000000,0,0"), "EURUSD")
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, r.Skipped())
}

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()
	in := []tick.Tick{
		{Symbol: "EURUSD", Date: 20240102, Time: 1, Trade: decimal.NewFromFloat(1.25), Size: 3, Exchange: "NYS"},
		{Symbol: "EURUSD", Date: 20240102, Time: 2, Bid: decimal.NewFromFloat(1.2), Ask: decimal.NewFromFloat(1.3), BidSize: 1, AskSize: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, in))
	out := readAll(t, NewCSVReader(&buf, "EURUSD"))
	require.Len(t, out, 2)
	assert.True(t, out[0].Trade.Equal(in[0].Trade))
	assert.True(t, out[1].Ask.Equal(in[1].Ask))
	assert.Equal(t, in[1].AskSize, out[1].AskSize)
}

func TestJSONReader(t *testing.T) {
	t.Parallel()
	data := `{"date":20240102,"time":93000000,"trade":1.2,"size":100,"exchange":"NYS"}

{"date":20240102,"time":93000001,"bid":"1.1","ask":"1.3","bidSize":5,"askSize":6,"depth":null}
`
	ticks := readAll(t, NewJSONReader(strings.NewReader(data), "EURUSD"))
	require.Len(t, ticks, 2)
	assert.True(t, ticks[0].Trade.Equal(decimal.NewFromFloat(1.2)))
	assert.Equal(t, "NYS", ticks[0].Exchange)
	assert.True(t, ticks[1].IsFullQuote())
	assert.Equal(t, int64(6), ticks[1].AskSize)

	r := NewJSONReader(strings.NewReader(`{"symbol":"GBPUSD","date":20240102,"time":1,"trade":2}`), "")
	tk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", tk.Symbol)

	_, err = parseJSONLine([]byte(`{"date":20240102,"time":1,"trade":"x"}`), "EURUSD")
	assert.Error(t, err)

	_, err = parseJSONLine([]byte(`{"date":20240102,"time":1}`), "EURUSD")
	assert.True(t, errors.Is(err, errInvalidRow))

	r = NewJSONReader(strings.NewReader(`{"date":20240102,"time":1,"trade":"x"}
{"date":20240102,"time":1}
{"date":20240102,"time":2,"trade":1.5,"size":1}`), "EURUSD")
	ticks = readAll(t, r)
	require.Len(t, ticks, 1)
	assert.Equal(t, 2, ticks[0].Time)
	assert.Equal(t, 2, r.Skipped())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "EURUSD_20240102.csv", "20240102,93000000,1.2,1\n")
	writeFile(t, dir, "GBPUSD_20240102.jsonl", `{"date":20240102,"time":93000000,"trade":1.3,"size":1}`+"\n")
	writeFile(t, dir, "notes.csv", "x\n")
	writeFile(t, dir, "EURUSD_20240103.txt", "20240103,93000000,1.2,1\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	ctx := context.Background()
	d := &Directory{Path: dir}
	metas, err := d.List(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 3, "bad file names are skipped")

	d = &Directory{Path: dir, Extensions: []string{".CSV", "jsonl"}}
	metas, err = d.List(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	d = &Directory{Path: dir, Pattern: "EURUSD_*"}
	metas, err = d.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	for _, m := range metas {
		r, err := d.Open(ctx, m)
		require.NoError(t, err)
		ticks := readAll(t, r)
		require.Len(t, ticks, 1)
		assert.Equal(t, "EURUSD", ticks[0].Symbol)
		assert.Equal(t, m.Date, ticks[0].Date)
	}

	d = &Directory{Files: []string{filepath.Join(dir, "GBPUSD_20240102.jsonl")}}
	metas, err = d.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	r, err := d.Open(ctx, metas[0])
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 1)

	_, err = (&Directory{}).List(ctx)
	assert.True(t, errors.Is(err, errPathUnset))
	_, err = d.Open(ctx, Meta{Format: "parquet"})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestSQLCatalog(t *testing.T) {
	t.Parallel()
	_, err := OpenSQL("mysql", "", "")
	assert.True(t, errors.Is(err, errUnknownDriver))
	_, err = NewSQLCatalog(nil, SQLite, "")
	assert.True(t, errors.Is(err, errDatabaseNil))

	c, err := OpenSQL(SQLite, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	_, err = NewSQLCatalog(c.db, SQLite, "ticks; DROP TABLE x")
	assert.True(t, errors.Is(err, errInvalidTable))

	ctx := context.Background()
	require.NoError(t, c.CreateSchema(ctx))
	var in []tick.Tick
	for i := 0; i < 5; i++ {
		in = append(in, tick.Tick{Symbol: "EURUSD", Date: 20240102, Time: 93000000 + i, Trade: decimal.NewFromFloat(1.2), Size: int64(i + 1), Exchange: "NYS"})
	}
	in = append(in,
		tick.Tick{Symbol: "GBPUSD", Date: 20240102, Time: 93000000, Bid: decimal.NewFromFloat(1.1), Ask: decimal.NewFromFloat(1.3), BidSize: 2, AskSize: 3},
		tick.Tick{Symbol: "EURUSD", Date: 20240103, Time: 93000000, Trade: decimal.NewFromFloat(1.21), Size: 1},
	)
	require.NoError(t, c.Insert(ctx, in))
	require.NoError(t, c.Insert(ctx, nil))

	metas, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, Meta{Path: DefaultTable, Symbol: "EURUSD", Date: 20240102, Format: common.DatabaseStr}, metas[0])
	assert.Equal(t, "GBPUSD", metas[1].Symbol)
	assert.Equal(t, 20240103, metas[2].Date)

	assert.True(t, errors.Is(c.SetPageSize(0), errInvalidPageSize))
	require.NoError(t, c.SetPageSize(2))
	r, err := c.Open(ctx, metas[0])
	require.NoError(t, err)
	ticks := readAll(t, r)
	require.Len(t, ticks, 5)
	for i, tk := range ticks {
		assert.Equal(t, int64(i+1), tk.Size)
		assert.Equal(t, "NYS", tk.Exchange)
	}

	r, err = c.Open(ctx, metas[1])
	require.NoError(t, err)
	ticks = readAll(t, r)
	require.Len(t, ticks, 1)
	assert.True(t, ticks[0].IsFullQuote())
	assert.True(t, ticks[0].Ask.Equal(decimal.NewFromFloat(1.3)))

	_, err = c.Open(ctx, Meta{Format: common.CSVStr})
	assert.True(t, errors.Is(err, errWrongCatalog))
}
