package log

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	errConfigIsNil           = errors.New("logger config is nil")
	errSubloggerConfigIsNil  = errors.New("sublogger config is nil")
	errUnhandledOutputWriter = errors.New("unhandled output writer")
	errSubLoggerNotFound     = errors.New("sub logger not found")
	errFileNameUnset         = errors.New("file output requires a filename")
)

func getWriters(s *SubLoggerConfig, fileName string) (zapcore.WriteSyncer, func(), error) {
	if s == nil {
		return nil, nil, errSubloggerConfigIsNil
	}
	var (
		syncers  []zapcore.WriteSyncer
		cleanups []func()
	)
	cleanup := func() {
		for i := range cleanups {
			cleanups[i]()
		}
	}
	outputWriters := strings.Split(s.Output, "|")
	for x := range outputWriters {
		switch strings.ToLower(strings.TrimSpace(outputWriters[x])) {
		case "stdout", "console":
			syncers = append(syncers, zapcore.Lock(os.Stdout))
		case "stderr":
			syncers = append(syncers, zapcore.Lock(os.Stderr))
		case "file":
			if fileName == "" {
				cleanup()
				return nil, nil, errFileNameUnset
			}
			ws, closeFile, err := zap.Open(fileName)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			syncers = append(syncers, ws)
			cleanups = append(cleanups, closeFile)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("%w: %s", errUnhandledOutputWriter, outputWriters[x])
		}
	}
	return zapcore.NewMultiWriteSyncer(syncers...), cleanup, nil
}

func newEncoder(encoding string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if strings.EqualFold(encoding, "json") {
		return zapcore.NewJSONEncoder(encoderCfg)
	}
	return zapcore.NewConsoleEncoder(encoderCfg)
}

func newLogger(encoding string, ws zapcore.WriteSyncer) *zap.SugaredLogger {
	return zap.New(zapcore.NewCore(newEncoder(encoding), ws, zapcore.DebugLevel)).Sugar()
}

// GenDefaultSettings return struct with known sane/working logger settings
func GenDefaultSettings() Config {
	enabled := true
	return Config{
		Enabled: &enabled,
		SubLoggerConfig: SubLoggerConfig{
			Level:  defaultLevels,
			Output: defaultOutput,
		},
		Encoding: "console",
	}
}

// SetupGlobalLogger configures every sub logger from the supplied config
func SetupGlobalLogger(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNil
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = base.Sync()
		closer()
		closer = nil
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		base = zap.NewNop().Sugar()
		for name, sl := range subLoggers {
			sl.logger = base.Named(name)
			sl.levels = Levels{}
		}
		return nil
	}
	ws, cleanup, err := getWriters(&cfg.SubLoggerConfig, cfg.FileName)
	if err != nil {
		return err
	}
	base = newLogger(cfg.Encoding, ws)
	closer = cleanup
	for name, sl := range subLoggers {
		sl.levels = splitLevel(cfg.Level)
		sl.logger = base.Named(name)
	}
	for x := range cfg.SubLoggers {
		err = configureSubLogger(&cfg.SubLoggers[x], cfg.Encoding, cfg.FileName)
		if err != nil {
			return err
		}
	}
	return nil
}

func configureSubLogger(s *SubLoggerConfig, encoding, fileName string) error {
	sl, found := subLoggers[strings.ToUpper(s.Name)]
	if !found {
		return fmt.Errorf("%w: %v", errSubLoggerNotFound, s.Name)
	}
	if s.Level != "" {
		sl.levels = splitLevel(s.Level)
	}
	if s.Output == "" {
		return nil
	}
	ws, cleanup, err := getWriters(s, fileName)
	if err != nil {
		return err
	}
	sl.logger = newLogger(encoding, ws).Named(sl.name)
	prev := closer
	closer = func() {
		if prev != nil {
			prev()
		}
		cleanup()
	}
	return nil
}

// CloseLogger flushes and releases any file outputs
func CloseLogger() error {
	mu.Lock()
	defer mu.Unlock()
	err := base.Sync()
	if closer != nil {
		closer()
		closer = nil
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		// stdout and stderr cannot be synced on every platform
		return nil
	}
	return err
}

func splitLevel(level string) (l Levels) {
	enabledLevels := strings.Split(level, "|")
	for x := range enabledLevels {
		switch strings.ToUpper(strings.TrimSpace(enabledLevels[x])) {
		case "DEBUG":
			l.Debug = true
		case "INFO":
			l.Info = true
		case "WARN":
			l.Warn = true
		case "ERROR":
			l.Error = true
		}
	}
	return
}

func registerNewSubLogger(subLogger string) *SubLogger {
	temp := &SubLogger{
		name:   strings.ToUpper(subLogger),
		levels: splitLevel(defaultLevels),
		logger: base.Named(strings.ToUpper(subLogger)),
	}
	subLoggers[temp.name] = temp
	return temp
}

// register all loggers at package init()
func init() {
	base = newLogger("console", zapcore.Lock(os.Stdout))

	Global = registerNewSubLogger("LOG")
	BackTester = registerNewSubLogger("BACKTESTER")
	ConfigMgr = registerNewSubLogger("CONFIG")
	Playback = registerNewSubLogger("PLAYBACK")
	Data = registerNewSubLogger("DATA")
	OrderBook = registerNewSubLogger("ORDERBOOK")
	Account = registerNewSubLogger("ACCOUNT")
	Fill = registerNewSubLogger("FILL")
}
