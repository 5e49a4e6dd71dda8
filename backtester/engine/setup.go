package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/config"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
	"github.com/thrasher-corp/tickbacktester/backtester/funding"
	"github.com/thrasher-corp/tickbacktester/backtester/playback"
	"github.com/thrasher-corp/tickbacktester/backtester/security"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
)

// NewFromConfig takes a run config and builds every component of the
// backtest: securities, accounts, the order book, the tick catalog and
// playback
func NewFromConfig(cfg *config.Config) (*BackTest, error) {
	log.Infoln(log.BackTester, "loading config...")
	if cfg == nil {
		return nil, errNilConfig
	}
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	secs := security.NewTable()
	err = secs.Load(cfg.Securities)
	if err != nil {
		return nil, err
	}
	def, err := funding.NewAccount(funding.Settings{
		Name:       cfg.Account.Name,
		Currency:   cfg.Account.Currency,
		Balance:    cfg.Account.Balance,
		Leverage:   cfg.Account.Leverage,
		Securities: secs,
	})
	if err != nil {
		return nil, err
	}

	book, err := exchange.NewOrderBook(def, costModel(cfg), cfg.Broker.Matching)
	if err != nil {
		return nil, err
	}
	for i := range cfg.SubAccounts {
		var acct *funding.Account
		acct, err = subAccount(def, &cfg.SubAccounts[i], secs)
		if err != nil {
			return nil, err
		}
		err = book.RegisterAccount(acct)
		if err != nil {
			return nil, err
		}
	}

	catalog, closer, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}
	start, end := cfg.DateRange()
	pb, err := playback.New(catalog, playback.Settings{
		Symbols:      cfg.DataSettings.Symbols,
		StartDate:    start,
		EndDate:      end,
		ReadAhead:    cfg.DataSettings.ReadAhead,
		WorkerBuffer: cfg.DataSettings.WorkerBuffer,
		LoadWait:     cfg.DataSettings.LoadWait,
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	bt, err := New(secs, book, pb)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		bt.closers = append(bt.closers, closer)
	}
	bt.MetaData.Nickname = cfg.Nickname
	if cfg.Bars.TimeframeSeconds > 0 {
		bt.SetBarTimeframe(time.Duration(cfg.Bars.TimeframeSeconds) * time.Second)
	}
	for i := range cfg.ScheduledOrders {
		bt.Schedule(cfg.ScheduledOrders[i])
	}
	return bt, nil
}

// New wires an order book to a playback engine. Every played tick is
// executed by the book before bars and tick listeners see it.
func New(secs *security.Table, book *exchange.OrderBook, pb *playback.Engine) (*BackTest, error) {
	if secs == nil || book == nil || pb == nil {
		return nil, fmt.Errorf("%w securities, order book or playback", gctcommon.ErrNilPointer)
	}
	bt := &BackTest{
		Securities: secs,
		OrderBook:  book,
		Playback:   pb,
	}
	if err := bt.SetupMetaData(); err != nil {
		return nil, err
	}
	book.OnGotOrder(func(*order.Pending) {
		bt.stats.orders.Add(1)
	})
	book.OnFill(func(t fill.Trade, _ *order.Pending) {
		bt.stats.fills.Add(1)
		log.Debugf(log.Fill, "%s", &t)
	})
	book.OnCancel(func(p *order.Pending) {
		bt.stats.cancelled.Add(1)
		log.Debugf(log.OrderBook, "order %d cancelled: %s", p.ID(), p.Status())
	})
	pb.OnTick(bt.handleTick)
	return bt, nil
}

func costModel(cfg *config.Config) costmodel.CostModel {
	if len(cfg.Broker.SymbolCosts) == 0 {
		return &cfg.Broker.Costs
	}
	overrides := make(map[string]*costmodel.Fixed, len(cfg.Broker.SymbolCosts))
	for symbol, costs := range cfg.Broker.SymbolCosts {
		overrides[symbol] = &costs
	}
	return &costmodel.PerSymbol{Default: &cfg.Broker.Costs, Overrides: overrides}
}

// subAccount funds a configured sub account. Without a balance it shares
// the primary account's settings.
func subAccount(def *funding.Account, s *config.AccountSettings, secs *security.Table) (*funding.Account, error) {
	if s.Balance.IsZero() {
		return def.NewSubAccount(s.Name)
	}
	currency := s.Currency
	if currency == "" {
		currency = def.Currency()
	}
	return funding.NewAccount(funding.Settings{
		Name:       s.Name,
		Currency:   currency,
		Balance:    s.Balance,
		Leverage:   s.Leverage,
		Securities: secs,
	})
}

// newCatalog returns the configured tick catalog and, for databases, the
// connection to close once playback ends
func newCatalog(cfg *config.Config) (source.Catalog, io.Closer, error) {
	switch cfg.DataSettings.DataType {
	case common.DatabaseStr:
		db := cfg.DataSettings.DatabaseData
		cat, err := source.OpenSQL(db.Driver, db.DSN, db.Table)
		if err != nil {
			return nil, nil, err
		}
		if db.PageSize > 0 {
			if err = cat.SetPageSize(db.PageSize); err != nil {
				_ = cat.Close()
				return nil, nil, err
			}
		}
		log.Infof(log.BackTester, "reading ticks from %s table %s", db.Driver, db.Table)
		return cat, cat, nil
	default:
		td := cfg.DataSettings.TickData
		log.Infof(log.BackTester, "reading %s ticks from %s", cfg.DataSettings.DataType, td.Folder)
		return &source.Directory{
			Path:       td.Folder,
			Files:      td.Files,
			Extensions: td.Extensions,
			Pattern:    td.Pattern,
		}, nil, nil
	}
}
