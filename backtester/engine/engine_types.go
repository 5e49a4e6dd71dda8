package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/config"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/portfolio/holdings"
	"github.com/thrasher-corp/tickbacktester/backtester/playback"
	"github.com/thrasher-corp/tickbacktester/backtester/security"
)

var (
	errNilConfig     = errors.New("unable to setup backtester with nil config")
	errTaskNotFound  = errors.New("task not found")
	errAlreadyRan    = errors.New("task already ran")
	errTaskHasNotRan = errors.New("task hasn't ran yet")
	errTaskIsRunning = errors.New("task is already running")
	errCannotClear   = errors.New("cannot clear task")

	errTaskAlreadyMonitored = errors.New("task already monitored")
)

// BackTest plays ticks through the simulated order book and drives the
// bars, scheduled orders and listeners built on top of it
type BackTest struct {
	m          sync.Mutex
	MetaData   TaskMetaData
	Securities *security.Table
	OrderBook  *exchange.OrderBook
	Playback   *playback.Engine

	closers   []io.Closer
	closeOnce sync.Once
	bars      *barAggregator
	schedule  []*scheduledOrder

	running bool
	hasRan  bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error

	lmtx   sync.RWMutex
	onTick []func(*tick.Tick)
	onBar  []func(Bar)

	stats runStats
}

// TaskMetaData identifies a run and tracks its lifecycle
type TaskMetaData struct {
	ID          uuid.UUID
	Nickname    string
	DateLoaded  time.Time
	DateStarted time.Time
	DateEnded   time.Time
	Closed      bool
	Stopped     bool
}

type runStats struct {
	orders    atomic.Int64
	rejected  atomic.Int64
	fills     atomic.Int64
	cancelled atomic.Int64
	bars      atomic.Int64
}

// scheduledOrder tracks when a configured order last fired
type scheduledOrder struct {
	config.ScheduledOrder
	fired    bool
	lastDate int
}

// Bar is an OHLCV summary of the trades in one timeframe
type Bar struct {
	Symbol    string
	Start     time.Time
	Timeframe time.Duration
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	Trades    int
}

type barAggregator struct {
	timeframe time.Duration
	current   map[string]*Bar
}

// TaskSummary holds the results of a run
type TaskSummary struct {
	MetaData   TaskMetaData
	Ticks      int64
	OutOfOrder int64
	Skipped    int64
	Orders     int64
	Rejected   int64
	Fills      int64
	Cancelled  int64
	Pending    int
	Bars       int64
	Accounts   []AccountSummary
}

// AccountSummary is a snapshot of an account's cash and positions
type AccountSummary struct {
	Name           string
	Currency       string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	Equity         decimal.Decimal
	RealizedPnL    decimal.Decimal
	Commission     decimal.Decimal
	MarginLevel    decimal.Decimal
	Trades         int
	Positions      []holdings.Position
}

// TaskManager holds multiple independent backtests
type TaskManager struct {
	m     sync.Mutex
	tasks []*BackTest
}
