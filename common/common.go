package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Shared errors
var (
	ErrNilPointer    = errors.New("nil pointer")
	ErrStartAfterEnd = errors.New("start date is after end date")
)

// GetDefaultDataDir returns the default data directory for the supplied OS
func GetDefaultDataDir(env string) string {
	if env == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "TickBacktester")
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, ".tickbacktester")
}

// FileExists returns whether the path exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// StringSliceContainsInsensitive returns whether needle is in haystack ignoring case
func StringSliceContainsInsensitive(haystack []string, needle string) bool {
	for i := range haystack {
		if strings.EqualFold(haystack[i], needle) {
			return true
		}
	}
	return false
}
