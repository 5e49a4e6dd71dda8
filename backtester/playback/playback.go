package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/common/convert"
	"github.com/thrasher-corp/tickbacktester/log"
	"golang.org/x/sync/errgroup"
)

// New returns a playback engine over a catalog
func New(c source.Catalog, s Settings) (*Engine, error) {
	if c == nil {
		return nil, errNilCatalog
	}
	if s.ReadAhead < 0 || s.WorkerBuffer < 0 || s.LoadWait < 0 {
		return nil, fmt.Errorf("%w: read ahead %d buffer %d wait %v", errInvalidSettings, s.ReadAhead, s.WorkerBuffer, s.LoadWait)
	}
	if s.StartDate != 0 && s.EndDate != 0 && s.StartDate > s.EndDate {
		return nil, fmt.Errorf("%w %d > %d", gctcommon.ErrStartAfterEnd, s.StartDate, s.EndDate)
	}
	if s.ReadAhead == 0 {
		s.ReadAhead = common.DefaultReadAhead
	}
	if s.WorkerBuffer == 0 {
		s.WorkerBuffer = common.DefaultWorkerBuffer
	}
	if s.LoadWait == 0 {
		s.LoadWait = DefaultLoadWait
	}
	return &Engine{catalog: c, settings: s}, nil
}

// OnTick registers a listener called with every emitted tick in
// registration order
func (e *Engine) OnTick(fn func(*tick.Tick)) {
	e.ctrlMtx.Lock()
	e.onTick = append(e.onTick, fn)
	e.ctrlMtx.Unlock()
}

// Initialize lists the catalog, filters and orders its sources and starts
// reading the first window of them. Calling it again has no effect until
// Reset.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.initialized {
		return nil
	}
	metas, err := e.catalog.List(ctx)
	if err != nil {
		return err
	}
	candidates := len(metas)
	metas = e.filter(metas)
	if len(metas) == 0 {
		return fmt.Errorf("%w from %d candidates", errNoTickSources, candidates)
	}
	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Date != metas[j].Date {
			return metas[i].Date < metas[j].Date
		}
		return metas[i].Symbol < metas[j].Symbol
	})

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	e.ctrlMtx.Lock()
	e.group, e.cancel = group, cancel
	e.ctrlMtx.Unlock()
	e.groupCtx = groupCtx
	e.pending = metas
	e.workers = nil
	e.opened = 0
	e.lastKey = math.MinInt64
	e.stopped.Store(false)
	e.refill()
	e.initialized = true
	log.Infof(log.Playback, "playing %d of %d tick sources, read ahead %d", len(metas), candidates, e.settings.ReadAhead)
	return nil
}

func (e *Engine) filter(metas []source.Meta) []source.Meta {
	resp := metas[:0:0]
	for _, m := range metas {
		if len(e.settings.Symbols) > 0 && !gctcommon.StringSliceContainsInsensitive(e.settings.Symbols, m.Symbol) {
			continue
		}
		if e.settings.StartDate != 0 && m.Date < e.settings.StartDate {
			continue
		}
		if e.settings.EndDate != 0 && m.Date > e.settings.EndDate {
			continue
		}
		resp = append(resp, m)
	}
	return resp
}

// refill starts producers until the window is full. Must be called with
// the play lock held.
func (e *Engine) refill() {
	e.ctrlMtx.Lock()
	defer e.ctrlMtx.Unlock()
	if e.group == nil || e.groupCtx.Err() != nil {
		return
	}
	for len(e.workers) < e.settings.ReadAhead && len(e.pending) > 0 {
		w := &worker{
			meta:  e.pending[0],
			index: e.opened,
			ch:    make(chan *tick.Tick, e.settings.WorkerBuffer),
		}
		e.pending = e.pending[1:]
		e.opened++
		e.workers = append(e.workers, w)
		ctx := e.groupCtx
		e.group.Go(func() error {
			return e.produce(ctx, w)
		})
	}
}

// produce owns the worker's reader and channel. Read failures skip the
// rest of the source rather than failing the group.
func (e *Engine) produce(ctx context.Context, w *worker) error {
	defer close(w.ch)
	r, err := e.catalog.Open(ctx, w.meta)
	if err != nil {
		e.skipped.Add(1)
		log.Errorf(log.Playback, "skipping %s: %v", w.meta, err)
		return nil
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf(log.Playback, "closing %s: %v", w.meta, err)
		}
	}()
	for {
		t, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.skipped.Add(1)
			log.Errorf(log.Playback, "skipping remainder of %s: %v", w.meta, err)
			return nil
		}
		if t.Symbol == "" {
			t.Symbol = w.meta.Symbol
		}
		select {
		case w.ch <- t:
		case <-ctx.Done():
			return nil
		}
	}
}

// PlayTo emits ticks in time order until the next tick is after end, no
// ticks remain or the engine is stopped. A zero end plays everything.
// Playing may resume from where it stopped with a later end.
func (e *Engine) PlayTo(end time.Time) (int, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if !e.initialized {
		return 0, errNotInitialized
	}
	endKey := int64(math.MaxInt64)
	if !end.IsZero() {
		endKey = convert.TimeToKey(end)
	}
	e.ctrlMtx.Lock()
	listeners := e.onTick
	e.ctrlMtx.Unlock()

	var n int
	for !e.stopped.Load() {
		w := e.next()
		if w == nil {
			if len(e.workers) == 0 && len(e.pending) == 0 {
				break
			}
			if e.groupCtx.Err() != nil {
				break
			}
			continue
		}
		key := w.head.Key()
		if key > endKey {
			break
		}
		t := w.head
		w.head = nil
		if key < e.lastKey {
			e.outOfOrder.Add(1)
		} else {
			e.lastKey = key
		}
		e.emitted.Add(1)
		n++
		for _, fn := range listeners {
			fn(t)
		}
	}
	return n, nil
}

// next loads a head tick for every worker, evicts drained workers, refills
// the window and returns the worker holding the earliest tick
func (e *Engine) next() *worker {
	for _, w := range e.workers {
		if w.head != nil || w.done {
			continue
		}
		select {
		case t, ok := <-w.ch:
			e.take(w, t, ok)
			continue
		default:
		}
		timer := time.NewTimer(e.settings.LoadWait)
		select {
		case t, ok := <-w.ch:
			e.take(w, t, ok)
		case <-timer.C:
			log.Warnf(log.Playback, "%s still loading after %v", w.meta, e.settings.LoadWait)
		case <-e.groupCtx.Done():
		}
		timer.Stop()
	}

	live := e.workers[:0]
	for _, w := range e.workers {
		if w.done && w.head == nil {
			continue
		}
		live = append(live, w)
	}
	for i := len(live); i < len(e.workers); i++ {
		e.workers[i] = nil
	}
	e.workers = live
	e.refill()

	var best *worker
	for _, w := range e.workers {
		if w.head == nil {
			continue
		}
		if best == nil || earlier(w, best) {
			best = w
		}
	}
	return best
}

func (e *Engine) take(w *worker, t *tick.Tick, ok bool) {
	if !ok {
		w.done = true
		return
	}
	w.head = t
}

func earlier(a, b *worker) bool {
	ka, kb := a.head.Key(), b.head.Key()
	if ka != kb {
		return ka < kb
	}
	if a.head.Symbol != b.head.Symbol {
		return a.head.Symbol < b.head.Symbol
	}
	return a.index < b.index
}

// Stop cancels in flight reads and waits for every producer to release
// its source
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.stopProducers()
}

func (e *Engine) stopProducers() {
	e.ctrlMtx.Lock()
	cancel, group := e.cancel, e.group
	if cancel != nil {
		cancel()
	}
	e.ctrlMtx.Unlock()
	if group == nil {
		return
	}
	if err := group.Wait(); err != nil {
		log.Errorf(log.Playback, "stopping producers: %v", err)
	}
}

// Reset stops playback and returns the engine to its state before
// Initialize. Counters are cleared.
func (e *Engine) Reset() {
	e.Stop()
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.ctrlMtx.Lock()
	e.cancel = nil
	e.group = nil
	e.ctrlMtx.Unlock()
	e.groupCtx = nil
	e.initialized = false
	e.pending = nil
	e.workers = nil
	e.opened = 0
	e.emitted.Store(0)
	e.outOfOrder.Store(0)
	e.skipped.Store(0)
	e.stopped.Store(false)
}

// Done returns whether every source has been played
func (e *Engine) Done() bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if !e.initialized {
		return false
	}
	if len(e.pending) > 0 {
		return false
	}
	for _, w := range e.workers {
		if w.head != nil || !w.done {
			return false
		}
	}
	return true
}

// Emitted returns the number of ticks played
func (e *Engine) Emitted() int64 {
	return e.emitted.Load()
}

// OutOfOrder returns how many ticks were emitted earlier than a tick
// already played
func (e *Engine) OutOfOrder() int64 {
	return e.outOfOrder.Load()
}

// HasOutOfOrder returns whether any tick was played out of time order
func (e *Engine) HasOutOfOrder() bool {
	return e.outOfOrder.Load() > 0
}

// Skipped returns the number of sources that failed to open or read
func (e *Engine) Skipped() int64 {
	return e.skipped.Load()
}
