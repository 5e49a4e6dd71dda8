package security

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NewTable returns an empty security table
func NewTable() *Table {
	return &Table{securities: make(map[string]*Security)}
}

// Load validates and stores the supplied securities, replacing existing
// entries of the same symbol
func (t *Table) Load(secs []Security) error {
	if len(secs) == 0 {
		return errCannotLoadSecurity
	}
	for i := range secs {
		if secs[i].ContractSize.IsZero() {
			secs[i].ContractSize = decimal.NewFromInt(1)
		}
		if err := secs[i].Validate(); err != nil {
			return err
		}
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.securities == nil {
		t.securities = make(map[string]*Security)
	}
	for i := range secs {
		s := secs[i]
		if _, ok := t.securities[s.Symbol]; !ok {
			t.order = append(t.order, s.Symbol)
		}
		t.securities[s.Symbol] = &s
	}
	return nil
}

// Get returns a copy of the security for a symbol
func (t *Table) Get(symbol string) (Security, error) {
	if t == nil {
		return Security{}, fmt.Errorf("%w: %s", ErrSecurityNotLoaded, symbol)
	}
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	s, ok := t.securities[symbol]
	if !ok {
		return Security{}, fmt.Errorf("%w: %s", ErrSecurityNotLoaded, symbol)
	}
	return *s, nil
}

// Has returns whether a symbol is loaded
func (t *Table) Has(symbol string) bool {
	_, err := t.Get(symbol)
	return err == nil
}

// Symbols returns the loaded symbols in load order
func (t *Table) Symbols() []string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	resp := make([]string, len(t.order))
	copy(resp, t.order)
	return resp
}

// Validate checks the security's reference values
func (s *Security) Validate() error {
	if s.Symbol == "" {
		return errSymbolUnset
	}
	if !s.PipSize.IsPositive() {
		return fmt.Errorf("%w for %s supplied %v", errInvalidPipSize, s.Symbol, s.PipSize)
	}
	if !s.ContractSize.IsPositive() {
		return fmt.Errorf("%w for %s supplied %v", errInvalidContract, s.Symbol, s.ContractSize)
	}
	if s.MinimumSize < 0 || s.StepSize < 0 {
		return fmt.Errorf("%w for %s supplied min: %d step: %d", errInvalidSizeLevels, s.Symbol, s.MinimumSize, s.StepSize)
	}
	return nil
}

// CheckVolume checks an order size against the minimum and step size
func (s *Security) CheckVolume(size int64) error {
	if size < 0 {
		size = -size
	}
	if size == 0 || (s.MinimumSize != 0 && size < s.MinimumSize) {
		return fmt.Errorf("%w min: %d supplied %d", ErrVolumeBelowMinimum, s.MinimumSize, size)
	}
	if s.StepSize != 0 && size%s.StepSize != 0 {
		return fmt.Errorf("%w stepSize: %d supplied %d", ErrVolumeNotStep, s.StepSize, size)
	}
	return nil
}

// PipValue converts a number of pips into a price distance
func (s *Security) PipValue(pips decimal.Decimal) decimal.Decimal {
	return pips.Mul(s.PipSize)
}
