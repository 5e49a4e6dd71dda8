package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/common/convert"
)

var errBroken = errors.New("broken source")

type fakeCatalog struct {
	files     map[string][]*tick.Tick
	metas     []source.Meta
	openErr   map[string]bool
	readErrAt map[string]int
	opened    atomic.Int64
	closed    atomic.Int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		files:     make(map[string][]*tick.Tick),
		openErr:   make(map[string]bool),
		readErrAt: make(map[string]int),
	}
}

// add registers a file of ticks at the supplied times for a symbol
func (f *fakeCatalog) add(symbol string, date int, times ...int) string {
	path := fmt.Sprintf("%s_%d", symbol, date)
	for i, tm := range times {
		f.files[path] = append(f.files[path], &tick.Tick{
			Symbol: symbol,
			Date:   date,
			Time:   tm,
			Trade:  decimal.NewFromInt(int64(i + 1)),
			Size:   int64(i + 1),
		})
	}
	f.metas = append(f.metas, source.Meta{Path: path, Symbol: symbol, Date: date, Format: common.CSVStr})
	return path
}

func (f *fakeCatalog) List(context.Context) ([]source.Meta, error) {
	resp := make([]source.Meta, len(f.metas))
	copy(resp, f.metas)
	return resp, nil
}

func (f *fakeCatalog) Open(_ context.Context, m source.Meta) (source.Reader, error) {
	if f.openErr[m.Path] {
		return nil, errBroken
	}
	f.opened.Add(1)
	errAt, ok := f.readErrAt[m.Path]
	if !ok {
		errAt = -1
	}
	return &fakeReader{ticks: f.files[m.Path], errAt: errAt, closed: &f.closed}, nil
}

type fakeReader struct {
	ticks  []*tick.Tick
	pos    int
	errAt  int
	closed *atomic.Int64
}

func (r *fakeReader) Next() (*tick.Tick, error) {
	if r.pos == r.errAt {
		return nil, errBroken
	}
	if r.pos >= len(r.ticks) {
		return nil, io.EOF
	}
	t := r.ticks[r.pos]
	r.pos++
	return t, nil
}

func (r *fakeReader) Close() error {
	r.closed.Add(1)
	return nil
}

func collect(e *Engine) *[]*tick.Tick {
	var mtx sync.Mutex
	out := &[]*tick.Tick{}
	e.OnTick(func(t *tick.Tick) {
		mtx.Lock()
		*out = append(*out, t)
		mtx.Unlock()
	})
	return out
}

func bySymbol(ticks []*tick.Tick) map[string][]int64 {
	resp := make(map[string][]int64)
	for _, t := range ticks {
		resp[t.Symbol] = append(resp[t.Symbol], t.Size)
	}
	return resp
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Settings{})
	assert.True(t, errors.Is(err, errNilCatalog))
	_, err = New(newFakeCatalog(), Settings{ReadAhead: -1})
	assert.True(t, errors.Is(err, errInvalidSettings))
	_, err = New(newFakeCatalog(), Settings{StartDate: 20240103, EndDate: 20240102})
	assert.Error(t, err)

	e, err := New(newFakeCatalog(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, common.DefaultReadAhead, e.settings.ReadAhead)
	assert.Equal(t, common.DefaultWorkerBuffer, e.settings.WorkerBuffer)

	_, err = e.PlayTo(time.Time{})
	assert.True(t, errors.Is(err, errNotInitialized))
	assert.True(t, errors.Is(e.Initialize(context.Background()), errNoTickSources))
}

func TestMergeOrder(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	c.add("GBPUSD", 20240102, 1000, 3000, 5000, 5000)
	c.add("EURUSD", 20240102, 2000, 3000, 4000)
	c.add("USDJPY", 20240102, 500, 6000)
	c.add("EURUSD", 20240103, 1000)

	e, err := New(c, Settings{})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, int64(10), e.Emitted())
	assert.False(t, e.HasOutOfOrder())
	assert.True(t, e.Done())

	for i := 1; i < len(*out); i++ {
		assert.LessOrEqual(t, (*out)[i-1].Key(), (*out)[i].Key())
	}
	// equal timestamps break by symbol
	assert.Equal(t, "EURUSD", (*out)[3].Symbol)
	assert.Equal(t, "GBPUSD", (*out)[4].Symbol)
	assert.Equal(t, 20240103, (*out)[9].Date)

	got := bySymbol(*out)
	assert.Equal(t, []int64{1, 2, 3, 4}, got["GBPUSD"])
	assert.Equal(t, []int64{1, 2, 3, 1}, got["EURUSD"])
	assert.Equal(t, []int64{1, 2}, got["USDJPY"])
	assert.Equal(t, c.opened.Load(), c.closed.Load())
}

func TestSmallWindowKeepsInstrumentOrder(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	for i, s := range symbols {
		times := make([]int, 20)
		for j := range times {
			times[j] = 93000000 + j*1000 + (len(symbols)-i)*10
		}
		c.add(s, 20240102, times...)
	}

	e, err := New(c, Settings{ReadAhead: 2, WorkerBuffer: 3})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.True(t, e.HasOutOfOrder(), "a window smaller than the file count reorders across instruments")
	assert.Positive(t, e.OutOfOrder())

	for s, sizes := range bySymbol(*out) {
		require.Len(t, sizes, 20, s)
		for i := range sizes {
			assert.Equal(t, int64(i+1), sizes[i], s)
		}
	}
	assert.Equal(t, int64(len(symbols)), c.closed.Load())
}

func TestPlayToResumes(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	c.add("EURUSD", 20240102, 93000000, 94000000, 95000000)
	c.add("GBPUSD", 20240102, 93500000, 94500000)

	e, err := New(c, Settings{})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Initialize(context.Background()), "initialize is idempotent")

	n, err := e.PlayTo(convert.DateTimeToTime(20240102, 94000000))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, e.Done())

	n, err = e.PlayTo(convert.DateTimeToTime(20240102, 94000000))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, *out, 5)
	assert.True(t, e.Done())
}

func TestFilters(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	c.add("EURUSD", 20240101, 1)
	c.add("EURUSD", 20240102, 1)
	c.add("GBPUSD", 20240102, 1)
	c.add("EURUSD", 20240103, 1)
	c.add("EURUSD", 20240104, 1)

	e, err := New(c, Settings{Symbols: []string{"eurusd"}, StartDate: 20240102, EndDate: 20240103})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	_, err = e.PlayTo(time.Time{})
	require.NoError(t, err)
	require.Len(t, *out, 2)
	assert.Equal(t, 20240102, (*out)[0].Date)
	assert.Equal(t, 20240103, (*out)[1].Date)
}

func TestBrokenSourcesSkipped(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	c.add("EURUSD", 20240102, 1000, 2000)
	bad := c.add("GBPUSD", 20240102, 1000)
	partial := c.add("USDJPY", 20240102, 1000, 2000, 3000)
	c.openErr[bad] = true
	c.readErrAt[partial] = 1

	e, err := New(c, Settings{})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(2), e.Skipped())
	got := bySymbol(*out)
	assert.Len(t, got["EURUSD"], 2)
	assert.Len(t, got["USDJPY"], 1)
	assert.Equal(t, c.opened.Load(), c.closed.Load())
}

func TestStopFromListener(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	for _, s := range []string{"AAA", "BBB", "CCC"} {
		times := make([]int, 500)
		for i := range times {
			times[i] = 90000000 + i
		}
		c.add(s, 20240102, times...)
	}
	e, err := New(c, Settings{WorkerBuffer: 4})
	require.NoError(t, err)
	var seen int
	e.OnTick(func(*tick.Tick) {
		seen++
		if seen == 10 {
			e.Stop()
		}
	})
	require.NoError(t, e.Initialize(context.Background()))
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, c.opened.Load(), c.closed.Load(), "producers release their sources on stop")

	n, err = e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
	e.Stop()
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	times := make([]int, 10000)
	for i := range times {
		times[i] = 90000000 + i
	}
	c.add("AAA", 20240102, times...)
	c.add("BBB", 20240102, times...)

	e, err := New(c, Settings{WorkerBuffer: 2})
	require.NoError(t, err)
	started := make(chan struct{})
	var once sync.Once
	e.OnTick(func(*tick.Tick) { once.Do(func() { close(started) }) })
	require.NoError(t, e.Initialize(context.Background()))

	done := make(chan int)
	go func() {
		n, _ := e.PlayTo(time.Time{})
		done <- n
	}()
	<-started
	e.Stop()
	select {
	case n := <-done:
		assert.LessOrEqual(t, n, 20000)
	case <-time.After(5 * time.Second):
		t.Fatal("PlayTo did not return after Stop")
	}
	assert.Equal(t, c.opened.Load(), c.closed.Load())
}

func TestReset(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	c.add("EURUSD", 20240102, 1000, 2000)
	e, err := New(c, Settings{})
	require.NoError(t, err)
	out := collect(e)
	require.NoError(t, e.Initialize(context.Background()))
	_, err = e.PlayTo(time.Time{})
	require.NoError(t, err)

	e.Reset()
	assert.Zero(t, e.Emitted())
	assert.False(t, e.Done())
	_, err = e.PlayTo(time.Time{})
	assert.True(t, errors.Is(err, errNotInitialized))

	require.NoError(t, e.Initialize(context.Background()))
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, *out, 4)
}

func TestCancelledContextEndsPlay(t *testing.T) {
	t.Parallel()
	c := newFakeCatalog()
	times := make([]int, 5000)
	for i := range times {
		times[i] = 90000000 + i
	}
	c.add("AAA", 20240102, times...)
	e, err := New(c, Settings{WorkerBuffer: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Initialize(ctx))
	var seen int
	e.OnTick(func(*tick.Tick) {
		seen++
		if seen == 5 {
			cancel()
		}
	})
	n, err := e.PlayTo(time.Time{})
	require.NoError(t, err)
	assert.Less(t, n, 5000)
	e.Stop()
	assert.Equal(t, c.opened.Load(), c.closed.Load())
}
