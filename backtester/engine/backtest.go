package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/thrasher-corp/tickbacktester/backtester/config"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
)

// SetupMetaData assigns the run an id and load time if it has none
func (bt *BackTest) SetupMetaData() error {
	if bt == nil {
		return fmt.Errorf("%w BackTest", gctcommon.ErrNilPointer)
	}
	bt.m.Lock()
	defer bt.m.Unlock()
	if bt.MetaData.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	bt.MetaData.ID = id
	bt.MetaData.DateLoaded = time.Now()
	return nil
}

// MatchesID returns whether the backtest has the supplied id
func (bt *BackTest) MatchesID(id uuid.UUID) bool {
	if bt == nil || id == uuid.Nil {
		return false
	}
	bt.m.Lock()
	defer bt.m.Unlock()
	return bt.MetaData.ID == id
}

// Equal returns whether two backtests are the same run
func (bt *BackTest) Equal(other *BackTest) bool {
	if bt == nil || other == nil {
		return false
	}
	if bt == other {
		return true
	}
	other.m.Lock()
	id := other.MetaData.ID
	other.m.Unlock()
	return bt.MatchesID(id)
}

// IsRunning returns whether playback is in progress
func (bt *BackTest) IsRunning() bool {
	bt.m.Lock()
	defer bt.m.Unlock()
	return bt.running
}

// HasRan returns whether the backtest has finished playing
func (bt *BackTest) HasRan() bool {
	bt.m.Lock()
	defer bt.m.Unlock()
	return bt.hasRan
}

// OnTick registers a listener called with every tick after the order book
// has executed it
func (bt *BackTest) OnTick(fn func(*tick.Tick)) {
	bt.lmtx.Lock()
	bt.onTick = append(bt.onTick, fn)
	bt.lmtx.Unlock()
}

// OnBar registers a listener called with every completed bar
func (bt *BackTest) OnBar(fn func(Bar)) {
	bt.lmtx.Lock()
	bt.onBar = append(bt.onBar, fn)
	bt.lmtx.Unlock()
}

// SetBarTimeframe enables bar aggregation. A non positive timeframe
// disables it.
func (bt *BackTest) SetBarTimeframe(tf time.Duration) {
	bt.lmtx.Lock()
	defer bt.lmtx.Unlock()
	if tf <= 0 {
		bt.bars = nil
		return
	}
	bt.bars = newBarAggregator(tf)
}

// Schedule adds an order to send once the simulated clock reaches its time
func (bt *BackTest) Schedule(s config.ScheduledOrder) {
	bt.lmtx.Lock()
	bt.schedule = append(bt.schedule, &scheduledOrder{ScheduledOrder: s})
	bt.lmtx.Unlock()
}

// SendOrder books an order against the named account, the default account
// when empty. Rejected orders return their failing status.
func (bt *BackTest) SendOrder(o order.Order, account string) (*order.Pending, order.Status) {
	p := order.NewPending(o)
	s := bt.OrderBook.SendOrderAccount(p, account)
	if s != order.OK {
		bt.stats.rejected.Add(1)
	}
	return p, s
}

// Run plays the backtest to completion
func (bt *BackTest) Run(ctx context.Context) error {
	if err := bt.Start(ctx); err != nil {
		return err
	}
	return bt.Wait()
}

// Start begins playback in the background
func (bt *BackTest) Start(ctx context.Context) error {
	if bt == nil {
		return fmt.Errorf("%w BackTest", gctcommon.ErrNilPointer)
	}
	bt.m.Lock()
	defer bt.m.Unlock()
	switch {
	case bt.running:
		return fmt.Errorf("%w %v", errTaskIsRunning, bt.MetaData.ID)
	case bt.hasRan:
		return fmt.Errorf("%w %v", errAlreadyRan, bt.MetaData.ID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	bt.cancel = cancel
	bt.running = true
	bt.done = make(chan struct{})
	bt.MetaData.DateStarted = time.Now()
	log.Infof(log.BackTester, "running backtest %v %s", bt.MetaData.ID, bt.MetaData.Nickname)
	go bt.run(ctx, runCtx)
	return nil
}

func (bt *BackTest) run(parent, ctx context.Context) {
	err := bt.play(parent, ctx)
	if err != nil {
		log.Errorf(log.BackTester, "backtest %v: %v", bt.MetaData.ID, err)
	}
	bt.m.Lock()
	bt.running = false
	bt.hasRan = true
	bt.runErr = err
	bt.MetaData.DateEnded = time.Now()
	bt.MetaData.Closed = true
	bt.cancel()
	close(bt.done)
	bt.m.Unlock()
}

func (bt *BackTest) play(parent, ctx context.Context) error {
	defer func() {
		if err := bt.Close(); err != nil {
			log.Errorf(log.BackTester, "closing tick catalog: %v", err)
		}
	}()
	err := bt.Playback.Initialize(ctx)
	if err != nil {
		return err
	}
	n, err := bt.Playback.PlayTo(time.Time{})
	bt.flushBars()
	log.Infof(log.BackTester, "played %d ticks, %d out of order", n, bt.Playback.OutOfOrder())
	if err != nil {
		return err
	}
	if bt.Playback.HasOutOfOrder() {
		log.Warnf(log.BackTester, "tick sources overlapped beyond the read ahead window, %d ticks played out of order", bt.Playback.OutOfOrder())
	}
	return parent.Err()
}

// Wait blocks until a started backtest finishes and returns its error
func (bt *BackTest) Wait() error {
	bt.m.Lock()
	done := bt.done
	bt.m.Unlock()
	if done == nil {
		return fmt.Errorf("%w %v", errTaskHasNotRan, bt.MetaData.ID)
	}
	<-done
	bt.m.Lock()
	defer bt.m.Unlock()
	return bt.runErr
}

// Stop ends a running backtest. Pending orders stay in the book.
func (bt *BackTest) Stop() error {
	if bt == nil {
		return fmt.Errorf("%w BackTest", gctcommon.ErrNilPointer)
	}
	bt.m.Lock()
	switch {
	case bt.hasRan:
		bt.m.Unlock()
		return fmt.Errorf("%w %v", errAlreadyRan, bt.MetaData.ID)
	case !bt.running:
		bt.m.Unlock()
		return fmt.Errorf("%w %v", errTaskHasNotRan, bt.MetaData.ID)
	}
	bt.MetaData.Stopped = true
	cancel := bt.cancel
	bt.m.Unlock()
	bt.Playback.Stop()
	cancel()
	return nil
}

// Close releases the tick catalog's connections. It is called when
// playback ends and is safe to call again.
func (bt *BackTest) Close() error {
	var errs []error
	bt.closeOnce.Do(func() {
		for _, c := range bt.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// handleTick sends due scheduled orders, executes the tick against the
// order book, then updates bars and tick listeners
func (bt *BackTest) handleTick(t *tick.Tick) {
	bt.fireSchedule(t)
	bt.OrderBook.Execute(t)

	bt.lmtx.RLock()
	agg := bt.bars
	tickListeners := bt.onTick
	barListeners := bt.onBar
	bt.lmtx.RUnlock()

	if agg != nil {
		if b, ok := agg.update(t); ok {
			bt.stats.bars.Add(1)
			for _, fn := range barListeners {
				fn(b)
			}
		}
	}
	for _, fn := range tickListeners {
		fn(t)
	}
}

func (bt *BackTest) fireSchedule(t *tick.Tick) {
	bt.lmtx.Lock()
	var due []*scheduledOrder
	key := t.Key()
	for _, s := range bt.schedule {
		if s.Date != 0 {
			if s.fired || key < s.Key(0) {
				continue
			}
			s.fired = true
		} else {
			if s.lastDate == t.Date || key < s.Key(t.Date) {
				continue
			}
			s.lastDate = t.Date
		}
		due = append(due, s)
	}
	bt.lmtx.Unlock()

	for _, s := range due {
		o, err := s.Order()
		if err != nil {
			log.Errorf(log.BackTester, "scheduled order for %s: %v", s.Symbol, err)
			continue
		}
		p, status := bt.SendOrder(o, s.Account)
		if status != order.OK {
			log.Warnf(log.BackTester, "scheduled %s order %d for %s rejected: %s", o.Type(), p.ID(), o.Symbol, status)
			continue
		}
		log.Debugf(log.BackTester, "scheduled order sent %s", &o)
	}
}

func (bt *BackTest) flushBars() {
	bt.lmtx.RLock()
	agg := bt.bars
	barListeners := bt.onBar
	bt.lmtx.RUnlock()
	if agg == nil {
		return
	}
	for _, b := range agg.flush() {
		bt.stats.bars.Add(1)
		for _, fn := range barListeners {
			fn(b)
		}
	}
}

