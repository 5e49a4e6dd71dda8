package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
)

const testYAML = `
nickname: eurusd-breakout
data:
  data-type: csv
  start-date: 2021-01-04
  end-date: "20210108"
  symbols: [EURUSD]
  read-ahead: 8
  tick-data:
    folder: /tmp/ticks
broker:
  costs:
    spread: 1.5
    slippage: "0.5"
    commission: 0.00002
    latency-ms: 25
  symbol-costs:
    EURUSD:
      spread: 2
  matching:
    opening-exchange: XLON
    high-liquidity-eod: true
account:
  name: main
  balance: 50000
  leverage: 30
sub-accounts:
  - name: hedge
securities:
  - symbol: EURUSD
    pip-size: 0.0001
    minimum-size: 1000
    step-size: 1000
bars:
  timeframe-seconds: 60
scheduled-orders:
  - time: 90000000
    symbol: EURUSD
    direction: buy
    size: 1000
    validity: gtc
  - date: 20210105
    time: 160000000
    symbol: EURUSD
    direction: flat
    account: hedge
`

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(strings.NewReader(testYAML), "yaml")
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	cfg := loadTestConfig(t)
	assert.Equal(t, "eurusd-breakout", cfg.Nickname)
	assert.Equal(t, 8, cfg.DataSettings.ReadAhead)
	assert.Equal(t, common.DefaultWorkerBuffer, cfg.DataSettings.WorkerBuffer, "default should apply")
	assert.Equal(t, 10*time.Second, cfg.DataSettings.LoadWait)
	assert.True(t, decimal.NewFromFloat(1.5).Equal(cfg.Broker.Costs.Spread))
	assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.Broker.Costs.Slippage))
	assert.Equal(t, int64(25), cfg.Broker.Costs.LatencyMS)
	assert.True(t, decimal.NewFromInt(2).Equal(cfg.Broker.SymbolCosts["EURUSD"].Spread))
	assert.Equal(t, "XLON", cfg.Broker.Matching.OpeningExchange)
	assert.True(t, cfg.Broker.Matching.HighLiquidityEOD)
	assert.Equal(t, common.MarketOnCloseTime, cfg.Broker.Matching.MOCTime)
	assert.Equal(t, "main", cfg.Account.Name)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.True(t, decimal.NewFromInt(50000).Equal(cfg.Account.Balance))
	require.Len(t, cfg.Securities, 1)
	assert.Equal(t, int64(1000), cfg.Securities[0].StepSize)
	require.Len(t, cfg.ScheduledOrders, 2)
	assert.Equal(t, 60, cfg.Bars.TimeframeSeconds)

	require.NoError(t, cfg.Validate())
	start, end := cfg.DateRange()
	assert.Equal(t, 20210104, start)
	assert.Equal(t, 20210108, end)
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.Securities[0].ContractSize), "contract size should default")
	assert.True(t, decimal.NewFromInt(common.DefaultStopOutLevel).Equal(cfg.Broker.SymbolCosts["EURUSD"].StopOut))
	assert.Equal(t, []string{common.CSVStr}, cfg.DataSettings.TickData.Extensions)
	assert.Equal(t, []string{"main", "hedge"}, cfg.AccountNames())
}

func TestReadConfigFromFile(t *testing.T) {
	t.Parallel()
	_, err := ReadConfigFromFile("not-here.yaml")
	assert.ErrorIs(t, err, errFileNotFound)

	f := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(f, []byte(testYAML), 0o600))
	cfg, err := ReadConfigFromFile(f)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Account.Name)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig(strings.NewReader(`{
		"data": {"data-type": "database", "database-data": {"driver": "sqlite", "dsn": ":memory:"}},
		"securities": [{"symbol": "ES", "pip-size": 0.25, "contract-size": 50}]
	}`), "json")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, common.DatabaseStr, cfg.DataSettings.DataType)
	assert.Equal(t, source.SQLite, cfg.DataSettings.DatabaseData.Driver)
	assert.Equal(t, source.DefaultTable, cfg.DataSettings.DatabaseData.Table)
	assert.True(t, decimal.NewFromInt(50).Equal(cfg.Securities[0].ContractSize))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("TICKBT_DATA_READ_AHEAD", "3")
	t.Setenv("TICKBT_ACCOUNT_BALANCE", "1234.5")
	t.Setenv("TICKBT_DATA_SYMBOLS", "EURUSD,GBPUSD")
	cfg, err := LoadConfig(strings.NewReader(testYAML), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DataSettings.ReadAhead)
	assert.True(t, decimal.RequireFromString("1234.5").Equal(cfg.Account.Balance))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, cfg.DataSettings.Symbols)
	assert.ErrorIs(t, cfg.Validate(), errUnknownSecurity, "GBPUSD has no security")
}

func TestGenerateDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg, err := GenerateDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, common.DefaultReadAhead, cfg.DataSettings.ReadAhead)
	assert.Equal(t, "default", cfg.Account.Name)
	assert.True(t, decimal.NewFromInt(100000).Equal(cfg.Account.Balance))
	assert.True(t, decimal.NewFromInt(common.DefaultStopOutLevel).Equal(cfg.Broker.Costs.StopOut))
	require.NotNil(t, cfg.Logging.Enabled)
	assert.True(t, *cfg.Logging.Enabled)
	assert.ErrorIs(t, cfg.Validate(), errTickFolderUnset)
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()
	f := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(f))
	cfg, err := ReadConfigFromFile(f)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Securities, 1)
	assert.Equal(t, "EURUSD", cfg.Securities[0].Symbol)
	assert.True(t, decimal.RequireFromString("0.0001").Equal(cfg.Securities[0].PipSize))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), errNilConfig)

	for name, tc := range map[string]struct {
		mutate func(*Config)
		err    error
	}{
		"bad date order": {func(c *Config) { c.DataSettings.StartDate, c.DataSettings.EndDate = "20210110", "20210101" }, errBadDate},
		"bad data type":  {func(c *Config) { c.DataSettings.DataType = "parquet" }, common.ErrInvalidDataType},
		"no dsn": {func(c *Config) {
			c.DataSettings.DataType = common.DatabaseStr
			c.DataSettings.DatabaseData.DSN = ""
		}, errDatabaseUnset},
		"no read ahead":      {func(c *Config) { c.DataSettings.ReadAhead = 0 }, errInvalidReadAhead},
		"no worker buffer":   {func(c *Config) { c.DataSettings.WorkerBuffer = -1 }, errInvalidWorkerBuffer},
		"no load wait":       {func(c *Config) { c.DataSettings.LoadWait = 0 }, errInvalidLoadWait},
		"negative timeframe": {func(c *Config) { c.Bars.TimeframeSeconds = -1 }, errInvalidTimeframe},
		"duplicate account": {func(c *Config) {
			c.SubAccounts = append(c.SubAccounts, AccountSettings{Name: "main"})
		}, errDuplicateAccount},
		"no securities": {func(c *Config) { c.Securities = nil }, errNoSecurities},
		"duplicate security": {func(c *Config) {
			c.Securities = append(c.Securities, c.Securities[0])
		}, errDuplicateSecurity},
		"bad schedule time": {func(c *Config) { c.ScheduledOrders[0].Time = 250000000 }, errInvalidScheduleTime},
		"bad schedule date": {func(c *Config) { c.ScheduledOrders[0].Date = 20211301 }, errInvalidScheduleTime},
		"bad direction":     {func(c *Config) { c.ScheduledOrders[0].Direction = "up" }, errInvalidScheduleOrder},
		"unknown account":   {func(c *Config) { c.ScheduledOrders[0].Account = "nobody" }, errUnknownAccount},
		"unknown symbol": {func(c *Config) {
			c.ScheduledOrders[1].Symbol = "GBPUSD"
		}, errUnknownSecurity},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := loadTestConfig(t)
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.err)
		})
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	t.Parallel()
	cfg := loadTestConfig(t)
	cfg.DataSettings.DataType = common.DatabaseStr
	cfg.DataSettings.DatabaseData = DatabaseData{
		Driver:   "postgresql",
		Host:     "localhost",
		Username: "tick",
		Password: "secret",
		Database: "ticks",
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, source.Postgres, cfg.DataSettings.DatabaseData.Driver)
	assert.Equal(t, "host=localhost port=5432 user=tick password=secret dbname=ticks sslmode=disable", cfg.DataSettings.DatabaseData.DSN)

	cfg.DataSettings.DatabaseData = DatabaseData{Driver: "sqlite", DataPath: "/data", Database: "ticks.db"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("/data", "ticks.db"), cfg.DataSettings.DatabaseData.DSN)

	cfg.DataSettings.DatabaseData = DatabaseData{Driver: "postgres", Database: "ticks"}
	assert.ErrorIs(t, cfg.Validate(), errDatabaseUnset, "postgres needs a host")
}

func TestSymbolCostsRekeyed(t *testing.T) {
	t.Parallel()
	cfg := loadTestConfig(t)
	assert.Contains(t, cfg.Broker.SymbolCosts, "EURUSD")
	assert.NotContains(t, cfg.Broker.SymbolCosts, "eurusd")

	cfg.Broker.SymbolCosts = map[string]costmodel.Fixed{
		"eurusd": {Spread: decimal.NewFromInt(3)},
		"usdjpy": {Spread: decimal.NewFromInt(4)},
	}
	require.NoError(t, cfg.Validate())
	assert.True(t, decimal.NewFromInt(3).Equal(cfg.Broker.SymbolCosts["EURUSD"].Spread))
	assert.True(t, decimal.NewFromInt(4).Equal(cfg.Broker.SymbolCosts["USDJPY"].Spread), "unknown symbols are uppercased")
	assert.Len(t, cfg.Broker.SymbolCosts, 2)
}

func TestScheduledOrder(t *testing.T) {
	t.Parallel()
	s := ScheduledOrder{
		Time:       93000000,
		Symbol:     "EURUSD",
		Direction:  "sell",
		Size:       5,
		LimitPrice: decimal.RequireFromString("1.2"),
		Validity:   "opg",
		Comment:    "open short",
	}
	o, err := s.Order()
	require.NoError(t, err)
	assert.Equal(t, int64(-5), o.Size)
	assert.Equal(t, order.Short, o.Direction)
	assert.Equal(t, order.Limit, o.Type())
	assert.Equal(t, order.OPG, o.Validity)
	assert.Equal(t, "open short", o.Comment)
	assert.Equal(t, int64(20210104093000000), s.Key(20210104))

	s.Date = 20210105
	assert.Equal(t, int64(20210105093000000), s.Key(20210104), "fixed dates ignore the trading day")

	s.Direction = "flat"
	s.Size = 0
	o, err = s.Order()
	require.NoError(t, err)
	assert.Equal(t, order.MarketFlat, o.Type())

	s.Direction = "buy"
	_, err = s.Order()
	assert.Error(t, err, "sized orders need a size")
}

func TestPrintSetting(t *testing.T) {
	t.Parallel()
	cfg := loadTestConfig(t)
	require.NoError(t, cfg.Validate())
	cfg.PrintSetting()
}
