package security

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	assert.True(t, errors.Is(tbl.Load(nil), errCannotLoadSecurity))

	err := tbl.Load([]Security{{Symbol: "EURUSD"}})
	assert.True(t, errors.Is(err, errInvalidPipSize))

	err = tbl.Load([]Security{{PipSize: decimal.NewFromFloat(0.0001)}})
	assert.True(t, errors.Is(err, errSymbolUnset))

	err = tbl.Load([]Security{{Symbol: "EURUSD", PipSize: decimal.NewFromFloat(0.0001), StepSize: -1}})
	assert.True(t, errors.Is(err, errInvalidSizeLevels))

	require.NoError(t, tbl.Load([]Security{
		{Symbol: "EURUSD", PipSize: decimal.NewFromFloat(0.0001)},
		{Symbol: "GBPUSD", PipSize: decimal.NewFromFloat(0.0001), ContractSize: decimal.NewFromInt(100000)},
	}))
	s, err := tbl.Get("EURUSD")
	require.NoError(t, err)
	assert.True(t, s.ContractSize.Equal(decimal.NewFromInt(1)), "contract size should default to one")
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, tbl.Symbols())
	assert.True(t, tbl.Has("GBPUSD"))

	_, err = tbl.Get("USDJPY")
	assert.True(t, errors.Is(err, ErrSecurityNotLoaded))

	var nilTable *Table
	_, err = nilTable.Get("EURUSD")
	assert.True(t, errors.Is(err, ErrSecurityNotLoaded))
}

func TestCheckVolume(t *testing.T) {
	t.Parallel()
	s := Security{Symbol: "EURUSD", MinimumSize: 10, StepSize: 5}
	for _, tc := range []struct {
		size int64
		err  error
	}{
		{size: 0, err: ErrVolumeBelowMinimum},
		{size: 5, err: ErrVolumeBelowMinimum},
		{size: -5, err: ErrVolumeBelowMinimum},
		{size: 12, err: ErrVolumeNotStep},
		{size: 10},
		{size: -15},
	} {
		err := s.CheckVolume(tc.size)
		if tc.err == nil {
			assert.NoError(t, err, "size %d", tc.size)
			continue
		}
		assert.True(t, errors.Is(err, tc.err), "size %d got %v", tc.size, err)
	}
}

func TestPipValue(t *testing.T) {
	t.Parallel()
	s := Security{PipSize: decimal.NewFromFloat(0.0001)}
	assert.True(t, s.PipValue(decimal.NewFromInt(2)).Equal(decimal.NewFromFloat(0.0002)))
}
