package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"golang.org/x/sync/errgroup"
)

// DefaultLoadWait bounds how long the merge waits on a file that is still
// loading before moving on without it
const DefaultLoadWait = 10 * time.Second

var (
	errNilCatalog      = errors.New("nil tick catalog")
	errNotInitialized  = errors.New("playback not initialized")
	errNoTickSources   = errors.New("no tick sources matched")
	errInvalidSettings = errors.New("invalid playback settings")
)

// Settings controls which sources play and how far ahead they are read
type Settings struct {
	Symbols      []string
	StartDate    int
	EndDate      int
	ReadAhead    int
	WorkerBuffer int
	LoadWait     time.Duration
}

// Engine merges many per instrument tick sources into one time ordered
// stream. Only one goroutine may play at a time; Stop is safe from any
// goroutine, including tick listeners.
type Engine struct {
	catalog  source.Catalog
	settings Settings

	mtx         sync.Mutex
	initialized bool
	pending     []source.Meta
	workers     []*worker
	opened      int
	lastKey     int64
	groupCtx    context.Context

	// ctrlMtx guards listeners and the producer group so Stop never
	// needs the play lock
	ctrlMtx sync.Mutex
	onTick  []func(*tick.Tick)
	cancel  context.CancelFunc
	group   *errgroup.Group

	stopped    atomic.Bool
	emitted    atomic.Int64
	outOfOrder atomic.Int64
	skipped    atomic.Int64
}

// worker is one open source with its queue of pre-read ticks
type worker struct {
	meta  source.Meta
	index int
	ch    chan *tick.Tick
	head  *tick.Tick
	done  bool
}
