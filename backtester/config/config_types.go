package config

import (
	"errors"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/security"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
)

// EnvPrefix prefixes every environment variable that overrides a config key
const EnvPrefix = "TICKBT"

var (
	// DefaultBTDir is the default backtester config directory
	DefaultBTDir = filepath.Join(gctcommon.GetDefaultDataDir(runtime.GOOS), "backtester")
	// DefaultBTConfigDir is the default backtester config file
	DefaultBTConfigDir = filepath.Join(DefaultBTDir, "config.yaml")
)

var (
	errFileNotFound         = errors.New("config file not found")
	errNilConfig            = errors.New("nil config")
	errBadDate              = errors.New("start date is after end date")
	errTickFolderUnset      = errors.New("tick folder or tick files must be set")
	errDatabaseUnset        = errors.New("database driver and dsn must be set")
	errNoSecurities         = errors.New("no securities configured")
	errDuplicateSecurity    = errors.New("security configured more than once")
	errDuplicateAccount     = errors.New("account configured more than once")
	errInvalidReadAhead     = errors.New("read ahead must be positive")
	errInvalidWorkerBuffer  = errors.New("worker buffer must be positive")
	errInvalidLoadWait      = errors.New("load wait must be positive")
	errInvalidTimeframe     = errors.New("bar timeframe cannot be negative")
	errInvalidScheduleTime  = errors.New("scheduled order has an invalid time")
	errInvalidScheduleOrder = errors.New("scheduled order is invalid")
	errUnknownAccount       = errors.New("scheduled order references unknown account")
	errUnknownSecurity      = errors.New("symbol has no configured security")
)

// Config defines a single backtest run
type Config struct {
	Nickname        string              `mapstructure:"nickname"`
	Goal            string              `mapstructure:"goal"`
	DataSettings    DataSettings        `mapstructure:"data"`
	Account         AccountSettings     `mapstructure:"account"`
	SubAccounts     []AccountSettings   `mapstructure:"sub-accounts"`
	Broker          BrokerSettings      `mapstructure:"broker"`
	Securities      []security.Security `mapstructure:"securities"`
	Bars            BarSettings         `mapstructure:"bars"`
	ScheduledOrders []ScheduledOrder    `mapstructure:"scheduled-orders"`
	Logging         log.Config          `mapstructure:"logging"`

	startDate int
	endDate   int
}

// DataSettings picks where ticks come from and how they are played
type DataSettings struct {
	// DataType is one of csv, jsonl or database
	DataType     string        `mapstructure:"data-type"`
	StartDate    string        `mapstructure:"start-date"`
	EndDate      string        `mapstructure:"end-date"`
	Symbols      []string      `mapstructure:"symbols"`
	ReadAhead    int           `mapstructure:"read-ahead"`
	WorkerBuffer int           `mapstructure:"worker-buffer"`
	LoadWait     time.Duration `mapstructure:"load-wait"`
	TickData     TickData      `mapstructure:"tick-data"`
	DatabaseData DatabaseData  `mapstructure:"database-data"`
}

// TickData defines a folder or explicit list of tick files
type TickData struct {
	Folder     string   `mapstructure:"folder"`
	Files      []string `mapstructure:"files"`
	Extensions []string `mapstructure:"extensions"`
	Pattern    string   `mapstructure:"pattern"`
}

// DatabaseData defines the SQL table ticks are read from. When DSN is
// empty it is built from the connection details.
type DatabaseData struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	PageSize int    `mapstructure:"page-size"`

	Host     string `mapstructure:"host"`
	Port     uint16 `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl-mode"`
	DataPath string `mapstructure:"data-path"`
}

// AccountSettings funds a trading account
type AccountSettings struct {
	Name     string          `mapstructure:"name"`
	Currency string          `mapstructure:"currency"`
	Balance  decimal.Decimal `mapstructure:"balance"`
	Leverage decimal.Decimal `mapstructure:"leverage"`
}

// BrokerSettings configures the simulated order book
type BrokerSettings struct {
	Costs       costmodel.Fixed            `mapstructure:"costs"`
	SymbolCosts map[string]costmodel.Fixed `mapstructure:"symbol-costs"`
	Matching    exchange.Settings          `mapstructure:"matching"`
}

// BarSettings controls bar aggregation. A zero timeframe disables bars
type BarSettings struct {
	TimeframeSeconds int `mapstructure:"timeframe-seconds"`
}

// ScheduledOrder is an order sent once the simulated clock reaches its
// time. A zero Date repeats the order every trading day.
type ScheduledOrder struct {
	Date       int             `mapstructure:"date"`
	Time       int             `mapstructure:"time"`
	Symbol     string          `mapstructure:"symbol"`
	Direction  string          `mapstructure:"direction"`
	Size       int64           `mapstructure:"size"`
	LimitPrice decimal.Decimal `mapstructure:"limit-price"`
	StopPrice  decimal.Decimal `mapstructure:"stop-price"`
	Validity   string          `mapstructure:"validity"`
	Account    string          `mapstructure:"account"`
	Comment    string          `mapstructure:"comment"`
}
