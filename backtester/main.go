package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/thrasher-corp/tickbacktester/backtester/config"
	"github.com/thrasher-corp/tickbacktester/backtester/data/source"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
	"github.com/thrasher-corp/tickbacktester/backtester/engine"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
	"github.com/thrasher-corp/tickbacktester/signaler"
	"github.com/urfave/cli/v2"
)

const importBatchSize = 5000

var (
	configPath string
	tickFolder string
	dataType   string
	startDate  string
	endDate    string
	logLevel   string
	timeframe  int
)

var runFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Value:       config.DefaultBTConfigDir,
		Usage:       "the run config to load, yaml, json or toml",
		Destination: &configPath,
	},
	&cli.StringFlag{
		Name:        "tickfolder",
		Usage:       "overrides the folder tick files are read from",
		Destination: &tickFolder,
	},
	&cli.StringFlag{
		Name:        "datatype",
		Usage:       "overrides the tick source type: csv, jsonl or database",
		Destination: &dataType,
	},
	&cli.StringSliceFlag{
		Name:  "symbol",
		Usage: "limits playback to the symbol, may be repeated",
	},
	&cli.IntFlag{
		Name:        "timeframe",
		Usage:       "bar timeframe in seconds, zero disables bars",
		Value:       -1,
		Destination: &timeframe,
	},
	&cli.StringFlag{
		Name:        "startdate",
		Usage:       "first trading day to play, YYYYMMDD or YYYY-MM-DD",
		Destination: &startDate,
	},
	&cli.StringFlag{
		Name:        "enddate",
		Usage:       "last trading day to play, YYYYMMDD or YYYY-MM-DD",
		Destination: &endDate,
	},
	&cli.StringFlag{
		Name:        "loglevel",
		Usage:       "log levels to print, eg INFO|WARN|ERROR",
		Destination: &logLevel,
	},
}

var generateConfigCommand = &cli.Command{
	Name:  "generateconfig",
	Usage: "writes a default run config to start from",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Value: config.DefaultBTConfigDir,
			Usage: "where to write the config, the extension picks the format",
		},
	},
	Action: generateConfig,
}

var importCommand = &cli.Command{
	Name:  "import",
	Usage: "loads a folder of tick files into a database table",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "folder",
			Usage:    "the folder of SYMBOL_YYYYMMDD tick files",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "extension",
			Usage: "file extensions to import, may be repeated",
		},
		&cli.StringFlag{
			Name:  "driver",
			Value: source.SQLite,
			Usage: "the database driver, sqlite3 or postgres",
		},
		&cli.StringFlag{
			Name:     "dsn",
			Usage:    "the database connection string",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "table",
			Value: source.DefaultTable,
			Usage: "the table ticks are written to",
		},
	},
	Action: importTicks,
}

func main() {
	app := cli.NewApp()
	app.Name = "tickbacktester"
	app.Usage = "replays historical ticks through a simulated broker"
	app.EnableBashCompletion = true
	app.Flags = runFlags
	app.Action = runBacktest
	app.Commands = []*cli.Command{
		generateConfigCommand,
		importCommand,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Capture cancel for interrupt
		<-signaler.WaitForInterrupt()
		log.Warnln(log.Global, "interrupted, stopping backtest")
		cancel()
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Errorln(log.Global, err)
	}
	if closeErr := log.CloseLogger(); closeErr != nil {
		fmt.Fprintln(os.Stderr, closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if gctcommon.FileExists(configPath) {
		cfg, err = config.ReadConfigFromFile(configPath)
	} else {
		if c.IsSet("config") {
			return nil, fmt.Errorf("config %s not found", configPath)
		}
		cfg, err = config.GenerateDefaultConfig()
	}
	if err != nil {
		return nil, err
	}
	if tickFolder != "" {
		cfg.DataSettings.TickData.Folder = tickFolder
	}
	if dataType != "" {
		cfg.DataSettings.DataType = dataType
	}
	if symbols := c.StringSlice("symbol"); len(symbols) > 0 {
		cfg.DataSettings.Symbols = symbols
	}
	if timeframe >= 0 {
		cfg.Bars.TimeframeSeconds = timeframe
	}
	if startDate != "" {
		cfg.DataSettings.StartDate = startDate
	}
	if endDate != "" {
		cfg.DataSettings.EndDate = endDate
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func runBacktest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	err = log.SetupGlobalLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	err = cfg.Validate()
	if err != nil {
		return err
	}
	cfg.PrintSetting()

	bt, err := engine.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	runErr := bt.Run(c.Context)
	sum, err := bt.GenerateSummary()
	if err != nil {
		return err
	}
	sum.PrintSummary()
	return runErr
}

func generateConfig(c *cli.Context) error {
	path := c.String("output")
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return err
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	log.Infof(log.Global, "wrote default config to %s", path)
	return nil
}

func importTicks(c *cli.Context) error {
	dir := &source.Directory{
		Path:       c.String("folder"),
		Extensions: c.StringSlice("extension"),
	}
	cat, err := source.OpenSQL(c.String("driver"), c.String("dsn"), c.String("table"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			log.Errorln(log.Data, closeErr)
		}
	}()
	ctx := c.Context
	if err = cat.CreateSchema(ctx); err != nil {
		return err
	}
	metas, err := dir.List(ctx)
	if err != nil {
		return err
	}
	var total int
	for _, m := range metas {
		n, err := importFile(ctx, dir, cat, m)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		total += n
		log.Infof(log.Data, "imported %d ticks from %s", n, m.Path)
	}
	log.Infof(log.Data, "imported %d ticks from %d files", total, len(metas))
	return nil
}

func importFile(ctx context.Context, dir *source.Directory, cat *source.SQLCatalog, m source.Meta) (int, error) {
	r, err := dir.Open(ctx, m)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	batch := make([]tick.Tick, 0, importBatchSize)
	var n int
	for {
		t, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		batch = append(batch, *t)
		if len(batch) == importBatchSize {
			if err = cat.Insert(ctx, batch); err != nil {
				return n, err
			}
			n += len(batch)
			batch = batch[:0]
		}
	}
	if err = cat.Insert(ctx, batch); err != nil {
		return n, err
	}
	return n + len(batch), nil
}

