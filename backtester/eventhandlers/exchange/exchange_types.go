package exchange

import (
	"errors"
	"sync"
	"time"

	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
	"github.com/thrasher-corp/tickbacktester/backtester/funding"
)

var (
	// ErrAccountNotRegistered is returned when an account name is unknown to the order book
	ErrAccountNotRegistered = errors.New("account not registered")

	errAccountAlreadyRegistered = errors.New("account already registered")
	errNilAccount               = errors.New("nil account")
	errNilCostModel             = errors.New("nil cost model")
)

// Settings controls optional matching behaviour
type Settings struct {
	// OpeningExchange is the exchange whose ticks may fill OPG orders
	OpeningExchange string `mapstructure:"opening-exchange"`
	// HighLiquidityEOD fills triggered stop and limit orders in full at
	// their own price
	HighLiquidityEOD bool `mapstructure:"high-liquidity-eod"`
	// MOCTime is the HHMMSSmmm time from which MOC orders may fill
	MOCTime int `mapstructure:"moc-time"`
}

// OrderBook is the simulated broker. It holds pending orders per account
// and matches them against each tick.
type OrderBook struct {
	mtx          sync.Mutex
	costModel    costmodel.CostModel
	settings     Settings
	accounts     []*accountOrders
	byName       map[string]*accountOrders
	pendingCount int
	simTime      time.Time
	hasOpened    map[string]int64
	books        map[string]tick.Book

	onGotOrder []func(*order.Pending)
	onFill     []func(fill.Trade, *order.Pending)
	onCancel   []func(*order.Pending)
	onUpdate   []func(*order.Pending)
}

type accountOrders struct {
	account *funding.Account
	orders  []*order.Pending
}

// tickLiquidity tracks the size left on each side of a tick as orders fill
type tickLiquidity struct {
	trade int64
	bid   int64
	ask   int64
}

type pendingFill struct {
	trade   fill.Trade
	pending *order.Pending
}
