package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thrasher-corp/tickbacktester/backtester/common"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
	"github.com/thrasher-corp/tickbacktester/log"
)

// List returns the metadata of every usable file. Files whose names
// cannot be parsed are logged and skipped.
func (d *Directory) List(ctx context.Context) ([]Meta, error) {
	paths := d.Files
	if len(paths) == 0 {
		if d.Path == "" {
			return nil, errPathUnset
		}
		entries, err := os.ReadDir(d.Path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(d.Path, e.Name()))
		}
	}

	exts := make([]string, len(d.Extensions))
	for i := range d.Extensions {
		exts[i] = strings.TrimPrefix(d.Extensions[i], ".")
	}
	resp := make([]Meta, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(p)
		if len(exts) > 0 && !gctcommon.StringSliceContainsInsensitive(exts, strings.TrimPrefix(filepath.Ext(name), ".")) {
			continue
		}
		if d.Pattern != "" {
			ok, err := filepath.Match(d.Pattern, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		m, err := ParseMeta(p)
		if err != nil {
			log.Warnf(log.Data, "skipping %s: %v", p, err)
			continue
		}
		resp = append(resp, m)
	}
	return resp, nil
}

// Open returns a reader for a listed file
func (d *Directory) Open(_ context.Context, m Meta) (Reader, error) {
	switch m.Format {
	case common.CSVStr:
		return OpenCSV(m.Path, m.Symbol)
	case common.JSONStr:
		return OpenJSON(m.Path, m.Symbol)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, m.Format)
}
