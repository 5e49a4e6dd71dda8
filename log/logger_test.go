package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tests in this package mutate global logger state and must not run in parallel

func TestSplitLevel(t *testing.T) {
	l := splitLevel("INFO|error")
	assert.True(t, l.Info)
	assert.True(t, l.Error)
	assert.False(t, l.Debug)
	assert.False(t, l.Warn)
}

func TestGetWriters(t *testing.T) {
	_, _, err := getWriters(nil, "")
	assert.ErrorIs(t, err, errSubloggerConfigIsNil)

	_, _, err = getWriters(&SubLoggerConfig{Output: "nope"}, "")
	assert.ErrorIs(t, err, errUnhandledOutputWriter)

	_, _, err = getWriters(&SubLoggerConfig{Output: "file"}, "")
	assert.ErrorIs(t, err, errFileNameUnset)

	ws, cleanup, err := getWriters(&SubLoggerConfig{Output: "stdout|stderr"}, "")
	require.NoError(t, err)
	assert.NotNil(t, ws)
	cleanup()
}

func TestSetupGlobalLoggerFileOutput(t *testing.T) {
	err := SetupGlobalLogger(nil)
	assert.ErrorIs(t, err, errConfigIsNil)

	fileName := filepath.Join(t.TempDir(), "backtester.log")
	cfg := GenDefaultSettings()
	cfg.Output = "file"
	cfg.FileName = fileName
	cfg.Encoding = "json"
	require.NoError(t, SetupGlobalLogger(&cfg))

	Infof(Playback, "loaded %d files", 3)
	Debugln(OrderBook, "matched", 2)
	require.NoError(t, CloseLogger())

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "loaded 3 files")
	assert.Contains(t, string(data), "PLAYBACK")
	assert.Contains(t, string(data), "matched2")

	def := GenDefaultSettings()
	require.NoError(t, SetupGlobalLogger(&def))
}

func TestSubLoggerOverride(t *testing.T) {
	cfg := GenDefaultSettings()
	cfg.SubLoggers = []SubLoggerConfig{{Name: "nope", Level: "INFO"}}
	assert.ErrorIs(t, SetupGlobalLogger(&cfg), errSubLoggerNotFound)

	cfg.SubLoggers = []SubLoggerConfig{{Name: "playback", Level: "ERROR"}}
	require.NoError(t, SetupGlobalLogger(&cfg))
	assert.False(t, Playback.levels.Info)
	assert.True(t, Playback.levels.Error)
	assert.True(t, OrderBook.levels.Info)

	def := GenDefaultSettings()
	require.NoError(t, SetupGlobalLogger(&def))
}

func TestSetCustomLogHook(t *testing.T) {
	var (
		m        sync.Mutex
		captured []string
	)
	SetCustomLogHook(func(header, name, msg string) bool {
		m.Lock()
		defer m.Unlock()
		captured = append(captured, header+name+msg)
		return true
	})
	defer SetCustomLogHook(nil)

	Warnf(Account, "margin level %v", 15)
	Error(nil, "ignored")

	m.Lock()
	defer m.Unlock()
	require.Len(t, captured, 1)
	assert.True(t, strings.HasPrefix(captured[0], warnHeader+"ACCOUNT"))
	assert.True(t, strings.HasSuffix(captured[0], "margin level 15"))
}

func TestDisabledLogger(t *testing.T) {
	disabled := false
	cfg := GenDefaultSettings()
	cfg.Enabled = &disabled
	require.NoError(t, SetupGlobalLogger(&cfg))
	assert.False(t, Global.enabled(infoHeader))

	def := GenDefaultSettings()
	require.NoError(t, SetupGlobalLogger(&def))
	assert.True(t, Global.enabled(infoHeader))
}
