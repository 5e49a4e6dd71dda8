package source

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/common/convert"
)

// ParseMeta reads the symbol, date and format from a SYMBOL_YYYYMMDD.ext
// file name
func ParseMeta(path string) (Meta, error) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == "" {
		return Meta{}, fmt.Errorf("%w: %s", ErrInvalidFileName, name)
	}
	format, err := formatFromExtension(ext)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s", err, name)
	}
	stem := strings.TrimSuffix(name, ext)
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 || i == len(stem)-1 {
		return Meta{}, fmt.Errorf("%w: %s", ErrInvalidFileName, name)
	}
	date, err := strconv.Atoi(stem[i+1:])
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s", ErrInvalidFileName, name)
	}
	if err = convert.ValidDate(date); err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrInvalidFileName, name, err)
	}
	return Meta{
		Path:   path,
		Symbol: stem[:i],
		Date:   date,
		Format: format,
	}, nil
}

func formatFromExtension(ext string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv", "txt":
		return common.CSVStr, nil
	case "jsonl", "json", "ndjson":
		return common.JSONStr, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func (m Meta) String() string {
	return fmt.Sprintf("%s %d %s", m.Symbol, m.Date, m.Path)
}
