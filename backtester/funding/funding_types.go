package funding

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/portfolio/holdings"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/fill"
	"github.com/thrasher-corp/tickbacktester/backtester/security"
)

var (
	errNameUnset       = errors.New("account name unset")
	errNegativeBalance = errors.New("initial balance cannot be negative")
	errInvalidLeverage = errors.New("leverage must be positive")
	errWrongAccount    = errors.New("trade belongs to another account")
)

// Settings configures a new Account
type Settings struct {
	Name       string
	Currency   string
	Balance    decimal.Decimal
	Leverage   decimal.Decimal
	Securities *security.Table
}

// Account holds a trading account's cash, positions and trade history
type Account struct {
	mtx            sync.RWMutex
	name           string
	currency       string
	initialBalance decimal.Decimal
	balance        decimal.Decimal
	leverage       decimal.Decimal
	realized       decimal.Decimal
	commission     decimal.Decimal
	securities     *security.Table
	ledger         *holdings.Ledger
	latest         map[string]decimal.Decimal
	trades         []fill.Trade
	onPosition     []func(holdings.Position)
}
