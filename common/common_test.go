package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultDataDir(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, GetDefaultDataDir("linux"))
}

func TestFileExists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.False(t, FileExists(dir), "directories are not files")
	p := filepath.Join(dir, "EURUSD_20240102.csv")
	assert.False(t, FileExists(p))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	assert.True(t, FileExists(p))
}

func TestStringSliceContainsInsensitive(t *testing.T) {
	t.Parallel()
	assert.True(t, StringSliceContainsInsensitive([]string{"EURUSD", "GBPUSD"}, "eurusd"))
	assert.False(t, StringSliceContainsInsensitive([]string{"EURUSD"}, "USDJPY"))
	assert.False(t, StringSliceContainsInsensitive(nil, "USDJPY"))
}
