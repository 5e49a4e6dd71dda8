package log

import (
	"sync"

	"go.uber.org/zap"
)

const (
	defaultLevels = "INFO|WARN|DEBUG|ERROR"
	defaultOutput = "console"
)

var (
	// base is the shared zap logger every sub logger is named from
	base *zap.SugaredLogger
	// closer releases file output on shutdown
	closer func()

	// read/write mutex for logger
	mu = &sync.RWMutex{}
)

// Config holds configuration settings for the logging system
type Config struct {
	Enabled *bool `json:"enabled" mapstructure:"enabled"`
	SubLoggerConfig `mapstructure:",squash"`
	// Encoding is either "console" or "json"
	Encoding   string            `json:"encoding" mapstructure:"encoding"`
	FileName   string            `json:"filename,omitempty" mapstructure:"filename"`
	SubLoggers []SubLoggerConfig `json:"subloggers,omitempty" mapstructure:"subloggers"`
}

// SubLoggerConfig holds sub logger configuration settings
type SubLoggerConfig struct {
	Name   string `json:"name,omitempty" mapstructure:"name"`
	Level  string `json:"level" mapstructure:"level"`
	Output string `json:"output" mapstructure:"output"`
}

// Levels flags for each sub logger type
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger defines a sub logger that can be used externally for packages
// wanted to leverage GCT library logger features.
type SubLogger struct {
	name   string
	levels Levels
	logger *zap.SugaredLogger
}
