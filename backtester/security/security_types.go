package security

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrSecurityNotLoaded is returned when a symbol has no table entry
	ErrSecurityNotLoaded = errors.New("security not loaded")
	// ErrVolumeBelowMinimum is returned when an order size is under the minimum
	ErrVolumeBelowMinimum = errors.New("volume below minimum")
	// ErrVolumeNotStep is returned when an order size is not a step multiple
	ErrVolumeNotStep = errors.New("volume is not a multiple of step size")

	errCannotLoadSecurity = errors.New("cannot load empty security list")
	errSymbolUnset        = errors.New("security symbol unset")
	errInvalidPipSize     = errors.New("pip size must be positive")
	errInvalidContract    = errors.New("contract size must be positive")
	errInvalidSizeLevels  = errors.New("minimum and step size cannot be negative")
)

// Security is the reference data for one tradable instrument
type Security struct {
	Symbol       string          `mapstructure:"symbol"`
	PipSize      decimal.Decimal `mapstructure:"pip-size"`
	ContractSize decimal.Decimal `mapstructure:"contract-size"`
	MinimumSize  int64           `mapstructure:"minimum-size"`
	StepSize     int64           `mapstructure:"step-size"`
}

// Table is an account's security reference table
type Table struct {
	mtx        sync.RWMutex
	securities map[string]*Security
	order      []string
}
