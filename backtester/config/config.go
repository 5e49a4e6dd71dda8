package config

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/eventhandlers/exchange/costmodel"
	"github.com/thrasher-corp/tickbacktester/backtester/eventtypes/order"
	"github.com/thrasher-corp/tickbacktester/backtester/playback"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/common/convert"
	"github.com/thrasher-corp/tickbacktester/log"
)

// ReadConfigFromFile will take a config from a path. The format follows the
// file extension: yaml, json or toml.
func ReadConfigFromFile(path string) (*Config, error) {
	if !gctcommon.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", errFileNotFound, path)
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadConfig reads a config of the supplied format from r
func LoadConfig(r io.Reader, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, err
	}
	return decode(v)
}

// GenerateDefaultConfig returns a config holding only default values
func GenerateDefaultConfig() (*Config, error) {
	return decode(newViper())
}

// WriteDefaultConfig writes the default settings plus an example security
// to path, creating a starting point for a new run
func WriteDefaultConfig(path string) error {
	v := newViper()
	v.Set("securities", []map[string]any{{
		"symbol":        "EURUSD",
		"pip-size":      "0.0001",
		"contract-size": "1",
		"minimum-size":  1,
		"step-size":     1,
	}})
	v.Set("data.tick-data.folder", filepath.Join(DefaultBTDir, "ticks"))
	return v.WriteConfigAs(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every overridable key so environment variables
// reach them during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("nickname", "")
	v.SetDefault("goal", "")
	v.SetDefault("data.data-type", common.CSVStr)
	v.SetDefault("data.start-date", "")
	v.SetDefault("data.end-date", "")
	v.SetDefault("data.symbols", []string{})
	v.SetDefault("data.read-ahead", common.DefaultReadAhead)
	v.SetDefault("data.worker-buffer", common.DefaultWorkerBuffer)
	v.SetDefault("data.load-wait", playback.DefaultLoadWait.String())
	v.SetDefault("data.tick-data.folder", "")
	v.SetDefault("data.tick-data.files", []string{})
	v.SetDefault("data.tick-data.extensions", []string{})
	v.SetDefault("data.tick-data.pattern", "")
	v.SetDefault("data.database-data.driver", source.SQLite)
	v.SetDefault("data.database-data.dsn", "")
	v.SetDefault("data.database-data.table", source.DefaultTable)
	v.SetDefault("data.database-data.page-size", 0)
	v.SetDefault("data.database-data.host", "")
	v.SetDefault("data.database-data.port", 0)
	v.SetDefault("data.database-data.username", "")
	v.SetDefault("data.database-data.password", "")
	v.SetDefault("data.database-data.database", "")
	v.SetDefault("data.database-data.ssl-mode", "")
	v.SetDefault("data.database-data.data-path", "")
	v.SetDefault("account.name", "default")
	v.SetDefault("account.currency", "USD")
	v.SetDefault("account.balance", "100000")
	v.SetDefault("account.leverage", "1")
	v.SetDefault("broker.costs.spread", "0")
	v.SetDefault("broker.costs.slippage", "0")
	v.SetDefault("broker.costs.commission", "0")
	v.SetDefault("broker.costs.latency-ms", 0)
	v.SetDefault("broker.costs.stop-out-level", fmt.Sprint(common.DefaultStopOutLevel))
	v.SetDefault("broker.matching.opening-exchange", "")
	v.SetDefault("broker.matching.high-liquidity-eod", false)
	v.SetDefault("broker.matching.moc-time", common.MarketOnCloseTime)
	v.SetDefault("bars.timeframe-seconds", 0)
	logCfg := log.GenDefaultSettings()
	v.SetDefault("logging.enabled", *logCfg.Enabled)
	v.SetDefault("logging.level", logCfg.Level)
	v.SetDefault("logging.output", logCfg.Output)
	v.SetDefault("logging.encoding", logCfg.Encoding)
	v.SetDefault("logging.filename", "")
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(stringifyDateHook),
		mapstructure.DecodeHookFuncType(decimalHook),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, err
	}
	c.normaliseSymbolCosts()
	return &c, nil
}

// normaliseSymbolCosts rekeys symbol cost overrides by their security's
// symbol. Viper lowercases map keys, so a configured EURUSD arrives as
// eurusd. Keys without a matching security are uppercased.
func (c *Config) normaliseSymbolCosts() {
	if len(c.Broker.SymbolCosts) == 0 {
		return
	}
	costs := make(map[string]costmodel.Fixed, len(c.Broker.SymbolCosts))
	for key, fixed := range c.Broker.SymbolCosts {
		symbol := strings.ToUpper(key)
		for i := range c.Securities {
			if strings.EqualFold(c.Securities[i].Symbol, key) {
				symbol = c.Securities[i].Symbol
				break
			}
		}
		costs[symbol] = fixed
	}
	c.Broker.SymbolCosts = costs
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// decimalHook decodes config numbers and strings into decimals without a
// float round trip for string input
func decimalHook(_, t reflect.Type, data any) (any, error) {
	if t != decimalType {
		return data, nil
	}
	switch d := data.(type) {
	case string:
		if d == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(d)
	case float64:
		return decimal.NewFromFloat(d), nil
	case float32:
		return decimal.NewFromFloat32(d), nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	case int64:
		return decimal.NewFromInt(d), nil
	case int32:
		return decimal.NewFromInt32(d), nil
	case uint64:
		return decimal.NewFromInt(int64(d)), nil
	case decimal.Decimal:
		return d, nil
	}
	return data, nil
}

// stringifyDateHook lets formats with native dates populate string date
// fields
func stringifyDateHook(f, t reflect.Type, data any) (any, error) {
	if t.Kind() != reflect.String || f != timeType {
		return data, nil
	}
	return data.(time.Time).Format(time.DateOnly), nil
}

// Validate checks all config settings, filling unset values with defaults
func (c *Config) Validate() error {
	if c == nil {
		return errNilConfig
	}
	err := c.validateDate()
	if err != nil {
		return err
	}
	err = c.validateDataSettings()
	if err != nil {
		return err
	}
	err = c.validateAccounts()
	if err != nil {
		return err
	}
	err = c.validateBroker()
	if err != nil {
		return err
	}
	err = c.validateSecurities()
	if err != nil {
		return err
	}
	return c.validateScheduledOrders()
}

// validateDate checks whether someone has set a date poorly in their config
func (c *Config) validateDate() (err error) {
	c.startDate, c.endDate = 0, 0
	if c.DataSettings.StartDate != "" {
		c.startDate, err = convert.ParseDate(c.DataSettings.StartDate)
		if err != nil {
			return fmt.Errorf("start date: %w", err)
		}
	}
	if c.DataSettings.EndDate != "" {
		c.endDate, err = convert.ParseDate(c.DataSettings.EndDate)
		if err != nil {
			return fmt.Errorf("end date: %w", err)
		}
	}
	if c.startDate != 0 && c.endDate != 0 && c.startDate > c.endDate {
		return fmt.Errorf("%w %d > %d", errBadDate, c.startDate, c.endDate)
	}
	return nil
}

// DateRange returns the validated YYYYMMDD start and end dates, zero when
// unbounded
func (c *Config) DateRange() (start, end int) {
	return c.startDate, c.endDate
}

func (c *Config) validateDataSettings() error {
	d := &c.DataSettings
	dataType, err := common.DataTypeToSourceType(d.DataType)
	if err != nil {
		return err
	}
	d.DataType = dataType
	switch dataType {
	case common.DatabaseStr:
		d.DatabaseData.Driver = normaliseDriver(d.DatabaseData.Driver)
		if d.DatabaseData.DSN == "" {
			d.DatabaseData.DSN = d.DatabaseData.connectionString()
		}
		if d.DatabaseData.Driver == "" || d.DatabaseData.DSN == "" {
			return errDatabaseUnset
		}
		if d.DatabaseData.Table == "" {
			d.DatabaseData.Table = source.DefaultTable
		}
	default:
		if d.TickData.Folder == "" && len(d.TickData.Files) == 0 {
			return errTickFolderUnset
		}
		if len(d.TickData.Extensions) == 0 {
			d.TickData.Extensions = []string{dataType}
		}
	}
	if d.ReadAhead <= 0 {
		return fmt.Errorf("%w: %d", errInvalidReadAhead, d.ReadAhead)
	}
	if d.WorkerBuffer <= 0 {
		return fmt.Errorf("%w: %d", errInvalidWorkerBuffer, d.WorkerBuffer)
	}
	if d.LoadWait <= 0 {
		return fmt.Errorf("%w: %v", errInvalidLoadWait, d.LoadWait)
	}
	if c.Bars.TimeframeSeconds < 0 {
		return fmt.Errorf("%w: %d", errInvalidTimeframe, c.Bars.TimeframeSeconds)
	}
	for i := range d.Symbols {
		d.Symbols[i] = strings.TrimSpace(d.Symbols[i])
	}
	return nil
}

// connectionString builds a DSN from the connection details, empty when
// they are insufficient
func (d *DatabaseData) connectionString() string {
	switch d.Driver {
	case source.SQLite:
		if d.Database == "" {
			return ""
		}
		return filepath.Join(d.DataPath, d.Database)
	case source.Postgres:
		if d.Host == "" || d.Database == "" {
			return ""
		}
		port := d.Port
		if port == 0 {
			port = 5432
		}
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host,
			port,
			d.Username,
			d.Password,
			d.Database,
			sslMode)
	}
	return ""
}

func normaliseDriver(driver string) string {
	switch strings.ToLower(driver) {
	case source.SQLite, "sqlite":
		return source.SQLite
	case source.Postgres, "postgresql", "psql":
		return source.Postgres
	}
	return driver
}

func (c *Config) validateAccounts() error {
	seen := make(map[string]struct{}, len(c.SubAccounts)+1)
	if c.Account.Name == "" {
		c.Account.Name = "default"
	}
	seen[c.Account.Name] = struct{}{}
	for i := range c.SubAccounts {
		if _, ok := seen[c.SubAccounts[i].Name]; ok {
			return fmt.Errorf("%w: %q", errDuplicateAccount, c.SubAccounts[i].Name)
		}
		seen[c.SubAccounts[i].Name] = struct{}{}
	}
	return nil
}

// AccountNames returns the primary account followed by every sub account
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.SubAccounts)+1)
	names = append(names, c.Account.Name)
	for i := range c.SubAccounts {
		names = append(names, c.SubAccounts[i].Name)
	}
	return names
}

func (c *Config) validateBroker() error {
	if err := c.Broker.Costs.Validate(); err != nil {
		return fmt.Errorf("broker costs: %w", err)
	}
	c.normaliseSymbolCosts()
	for symbol, costs := range c.Broker.SymbolCosts {
		if err := costs.Validate(); err != nil {
			return fmt.Errorf("%s costs: %w", symbol, err)
		}
		c.Broker.SymbolCosts[symbol] = costs
	}
	if c.Broker.Matching.MOCTime == 0 {
		c.Broker.Matching.MOCTime = common.MarketOnCloseTime
	}
	return convert.ValidTime(c.Broker.Matching.MOCTime)
}

func (c *Config) validateSecurities() error {
	if len(c.Securities) == 0 {
		return errNoSecurities
	}
	seen := make(map[string]struct{}, len(c.Securities))
	for i := range c.Securities {
		if c.Securities[i].ContractSize.IsZero() {
			c.Securities[i].ContractSize = decimal.NewFromInt(1)
		}
		if err := c.Securities[i].Validate(); err != nil {
			return err
		}
		if _, ok := seen[c.Securities[i].Symbol]; ok {
			return fmt.Errorf("%w: %s", errDuplicateSecurity, c.Securities[i].Symbol)
		}
		seen[c.Securities[i].Symbol] = struct{}{}
	}
	for i := range c.DataSettings.Symbols {
		if _, ok := seen[c.DataSettings.Symbols[i]]; !ok {
			return fmt.Errorf("%w: %s", errUnknownSecurity, c.DataSettings.Symbols[i])
		}
	}
	return nil
}

func (c *Config) validateScheduledOrders() error {
	symbols := make(map[string]struct{}, len(c.Securities))
	for i := range c.Securities {
		symbols[c.Securities[i].Symbol] = struct{}{}
	}
	accounts := c.AccountNames()
	for i := range c.ScheduledOrders {
		s := &c.ScheduledOrders[i]
		if err := convert.ValidTime(s.Time); err != nil {
			return fmt.Errorf("%w %d: %w", errInvalidScheduleTime, i, err)
		}
		if s.Date != 0 {
			if err := convert.ValidDate(s.Date); err != nil {
				return fmt.Errorf("%w %d: %w", errInvalidScheduleTime, i, err)
			}
		}
		if _, err := s.Order(); err != nil {
			return fmt.Errorf("%w %d: %w", errInvalidScheduleOrder, i, err)
		}
		if _, ok := symbols[s.Symbol]; !ok {
			return fmt.Errorf("%w: %s", errUnknownSecurity, s.Symbol)
		}
		if s.Account != "" && !gctcommon.StringSliceContainsInsensitive(accounts, s.Account) {
			return fmt.Errorf("%w: %s", errUnknownAccount, s.Account)
		}
	}
	return nil
}

// Order builds the order to send when the schedule fires
func (s *ScheduledOrder) Order() (order.Order, error) {
	dir, ok := order.DirectionFromString(s.Direction)
	if !ok {
		return order.Order{}, fmt.Errorf("%w: %q", errInvalidScheduleOrder, s.Direction)
	}
	o := order.New(s.Symbol, dir, s.Size)
	o.LimitPrice = s.LimitPrice
	o.StopPrice = s.StopPrice
	o.Validity = order.ValidityFromString(s.Validity)
	o.AccountName = s.Account
	o.Comment = s.Comment
	if dir == order.Flat {
		// size resolves from the position when the book accepts it
		if o.Symbol == "" {
			return o, fmt.Errorf("%w: symbol unset", errInvalidScheduleOrder)
		}
		return o, nil
	}
	return o, o.Validate()
}

// Key returns the playback key the schedule fires at for a trading day
func (s *ScheduledOrder) Key(date int) int64 {
	if s.Date != 0 {
		date = s.Date
	}
	return convert.DateTimeKey(date, s.Time)
}

// PrintSetting prints relevant settings to the console for easy reading
func (c *Config) PrintSetting() {
	log.Info(log.ConfigMgr, "------------------Backtester Settings------------------------")
	log.Infof(log.ConfigMgr, "Nickname: %s", c.Nickname)
	if c.Goal != "" {
		log.Infof(log.ConfigMgr, "Goal: %s", c.Goal)
	}
	log.Info(log.ConfigMgr, "------------------Data Settings------------------------------")
	log.Infof(log.ConfigMgr, "Data type: %v", c.DataSettings.DataType)
	log.Infof(log.ConfigMgr, "Start date: %v", c.DataSettings.StartDate)
	log.Infof(log.ConfigMgr, "End date: %v", c.DataSettings.EndDate)
	if len(c.DataSettings.Symbols) > 0 {
		log.Infof(log.ConfigMgr, "Symbols: %v", strings.Join(c.DataSettings.Symbols, ","))
	}
	log.Infof(log.ConfigMgr, "Read ahead: %d files", c.DataSettings.ReadAhead)
	log.Infof(log.ConfigMgr, "Worker buffer: %d ticks", c.DataSettings.WorkerBuffer)
	if c.DataSettings.DataType == common.DatabaseStr {
		log.Infof(log.ConfigMgr, "Database driver: %v", c.DataSettings.DatabaseData.Driver)
		log.Infof(log.ConfigMgr, "Database table: %v", c.DataSettings.DatabaseData.Table)
	} else {
		log.Infof(log.ConfigMgr, "Tick folder: %v", c.DataSettings.TickData.Folder)
		if len(c.DataSettings.TickData.Files) > 0 {
			log.Infof(log.ConfigMgr, "Tick files: %d", len(c.DataSettings.TickData.Files))
		}
	}
	if c.Bars.TimeframeSeconds > 0 {
		log.Infof(log.ConfigMgr, "Bar timeframe: %v", time.Duration(c.Bars.TimeframeSeconds)*time.Second)
	}

	log.Info(log.ConfigMgr, "------------------Account Settings---------------------------")
	log.Infof(log.ConfigMgr, "Account %s: %v %s leverage %v",
		c.Account.Name,
		c.Account.Balance.Round(2),
		c.Account.Currency,
		c.Account.Leverage)
	for i := range c.SubAccounts {
		log.Infof(log.ConfigMgr, "Sub account: %s", c.SubAccounts[i].Name)
	}

	log.Info(log.ConfigMgr, "------------------Broker Settings----------------------------")
	log.Infof(log.ConfigMgr, "Spread: %v pips", c.Broker.Costs.Spread)
	log.Infof(log.ConfigMgr, "Slippage: %v pips", c.Broker.Costs.Slippage)
	log.Infof(log.ConfigMgr, "Commission: %v", c.Broker.Costs.Commission)
	log.Infof(log.ConfigMgr, "Latency: %dms", c.Broker.Costs.LatencyMS)
	log.Infof(log.ConfigMgr, "Stop out level: %v%%", c.Broker.Costs.StopOut)
	for symbol, costs := range c.Broker.SymbolCosts {
		log.Infof(log.ConfigMgr, "%s costs: %+v", symbol, costs)
	}
	log.Infof(log.ConfigMgr, "Matching rules: %+v", c.Broker.Matching)

	log.Info(log.ConfigMgr, "------------------Securities---------------------------------")
	for i := range c.Securities {
		log.Infof(log.ConfigMgr, "%s pip size %v contract size %v minimum %d step %d",
			c.Securities[i].Symbol,
			c.Securities[i].PipSize,
			c.Securities[i].ContractSize,
			c.Securities[i].MinimumSize,
			c.Securities[i].StepSize)
	}
	if len(c.ScheduledOrders) > 0 {
		log.Infof(log.ConfigMgr, "Scheduled orders: %d", len(c.ScheduledOrders))
	}
}
