package source

import (
	"context"
	"database/sql"
	"errors"

	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
)

var (
	// ErrInvalidFileName is returned when a file name is not SYMBOL_YYYYMMDD.ext
	ErrInvalidFileName = errors.New("tick file name must be SYMBOL_YYYYMMDD.ext")
	// ErrUnsupportedFormat is returned for an unknown tick file format
	ErrUnsupportedFormat = errors.New("unsupported tick format")

	errInvalidRow      = errors.New("invalid tick row")
	errPathUnset       = errors.New("catalog path unset")
	errInvalidTable    = errors.New("invalid table name")
	errUnknownDriver   = errors.New("unknown sql driver")
	errWrongCatalog    = errors.New("meta does not belong to this catalog")
	errDatabaseNil     = errors.New("database is nil")
	errInvalidPageSize = errors.New("page size must be positive")
)

// Reader supplies the ticks of one instrument file in time order. Next
// returns io.EOF once the source is drained.
type Reader interface {
	Next() (*tick.Tick, error)
	Close() error
}

// Catalog lists and opens tick sources
type Catalog interface {
	List(ctx context.Context) ([]Meta, error)
	Open(ctx context.Context, m Meta) (Reader, error)
}

// Meta identifies one instrument's ticks for one day
type Meta struct {
	Path   string
	Symbol string
	Date   int
	Format string
}

// Directory catalogs tick files, either an explicit list or every file in
// a folder matching the extensions and glob pattern
type Directory struct {
	Path       string
	Files      []string
	Extensions []string
	Pattern    string
}

// SQLCatalog serves ticks stored in a SQL table, one partition per symbol
// and date
type SQLCatalog struct {
	db       *sql.DB
	driver   string
	table    string
	pageSize int
}
