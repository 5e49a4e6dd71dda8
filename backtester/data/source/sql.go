package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	// import sql drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/thrasher-corp/tickbacktester/backtester/common"
	"github.com/thrasher-corp/tickbacktester/backtester/data/tick"
)

// Supported database/sql driver names
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// DefaultTable is the tick table used when none is configured
const DefaultTable = "ticks"

const defaultPageSize = 5000

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenSQL connects to a tick database
func OpenSQL(driver, dsn, table string) (*SQLCatalog, error) {
	if driver != SQLite && driver != Postgres {
		return nil, fmt.Errorf("%w: %s", errUnknownDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}
	c, err := NewSQLCatalog(db, driver, table)
	if err != nil {
		return nil, fmt.Errorf("%w %v", err, db.Close())
	}
	return c, nil
}

// NewSQLCatalog wraps an open database
func NewSQLCatalog(db *sql.DB, driver, table string) (*SQLCatalog, error) {
	if db == nil {
		return nil, errDatabaseNil
	}
	if driver != SQLite && driver != Postgres {
		return nil, fmt.Errorf("%w: %s", errUnknownDriver, driver)
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", errInvalidTable, table)
	}
	return &SQLCatalog{db: db, driver: driver, table: table, pageSize: defaultPageSize}, nil
}

// SetPageSize sets how many rows a reader fetches per query
func (s *SQLCatalog) SetPageSize(n int) error {
	if n <= 0 {
		return errInvalidPageSize
	}
	s.pageSize = n
	return nil
}

// Close closes the database
func (s *SQLCatalog) Close() error {
	return s.db.Close()
}

// placeholder returns the n'th bind parameter for the driver
func (s *SQLCatalog) placeholder(n int) string {
	if s.driver == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// CreateSchema creates the tick table and its index if they do not exist
func (s *SQLCatalog) CreateSchema(ctx context.Context) error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == Postgres {
		id = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	` + id + `,
	symbol TEXT NOT NULL,
	date INTEGER NOT NULL,
	time INTEGER NOT NULL,
	trade TEXT,
	size BIGINT,
	exchange TEXT,
	bid TEXT,
	ask TEXT,
	bid_size BIGINT,
	ask_size BIGINT,
	bid_exchange TEXT,
	ask_exchange TEXT,
	depth INTEGER
)`,
		`CREATE INDEX IF NOT EXISTS ` + s.table + `_symbol_date ON ` + s.table + ` (symbol, date, id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores ticks in a single transaction, preserving their order
func (s *SQLCatalog) Insert(ctx context.Context, ticks []tick.Tick) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w %v", err, tx.Rollback())
		}
	}()
	ph := make([]string, 13)
	for i := range ph {
		ph[i] = s.placeholder(i + 1)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table+
		` (symbol, date, time, trade, size, exchange, bid, ask, bid_size, ask_size, bid_exchange, ask_exchange, depth) VALUES (`+
		strings.Join(ph, ", ")+`)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range ticks {
		t := &ticks[i]
		if _, err = stmt.ExecContext(ctx,
			t.Symbol, t.Date, t.Time,
			t.Trade.String(), t.Size, t.Exchange,
			t.Bid.String(), t.Ask.String(), t.BidSize, t.AskSize,
			t.BidExchange, t.AskExchange, t.Depth); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns one entry per stored symbol and date
func (s *SQLCatalog) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol, date FROM `+s.table+` ORDER BY date, symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var resp []Meta
	for rows.Next() {
		m := Meta{Path: s.table, Format: common.DatabaseStr}
		if err = rows.Scan(&m.Symbol, &m.Date); err != nil {
			return nil, err
		}
		resp = append(resp, m)
	}
	return resp, rows.Err()
}

// Open returns a reader over one symbol and date partition
func (s *SQLCatalog) Open(ctx context.Context, m Meta) (Reader, error) {
	if m.Format != common.DatabaseStr || m.Path != s.table {
		return nil, fmt.Errorf("%w: %s", errWrongCatalog, m)
	}
	return &sqlReader{
		ctx:    ctx,
		cat:    s,
		symbol: m.Symbol,
		date:   m.Date,
	}, nil
}

// sqlReader pages through a partition by id so no connection is held
// between calls
type sqlReader struct {
	ctx    context.Context
	cat    *SQLCatalog
	symbol string
	date   int
	lastID int64
	buf    []*tick.Tick
	done   bool
	closed bool
}

func (r *sqlReader) Next() (*tick.Tick, error) {
	if r.closed {
		return nil, io.EOF
	}
	if len(r.buf) == 0 {
		if r.done {
			return nil, io.EOF
		}
		if err := r.fetch(); err != nil {
			return nil, err
		}
		if len(r.buf) == 0 {
			return nil, io.EOF
		}
	}
	t := r.buf[0]
	r.buf = r.buf[1:]
	return t, nil
}

func (r *sqlReader) fetch() error {
	s := r.cat
	q := `SELECT id, time, trade, size, exchange, bid, ask, bid_size, ask_size, bid_exchange, ask_exchange, depth FROM ` +
		s.table + ` WHERE symbol = ` + s.placeholder(1) + ` AND date = ` + s.placeholder(2) +
		` AND id > ` + s.placeholder(3) + ` ORDER BY id LIMIT ` + s.placeholder(4)
	rows, err := s.db.QueryContext(r.ctx, q, r.symbol, r.date, r.lastID, s.pageSize)
	if err != nil {
		return err
	}
	defer rows.Close()
	var n int
	for rows.Next() {
		var (
			trade, bid, ask, exch, bidExch, askExch sql.NullString
			size, bidSize, askSize, depth          sql.NullInt64
		)
		t := &tick.Tick{Symbol: r.symbol, Date: r.date}
		if err = rows.Scan(&r.lastID, &t.Time, &trade, &size, &exch, &bid, &ask, &bidSize, &askSize, &bidExch, &askExch, &depth); err != nil {
			return err
		}
		if t.Trade, err = parseDecimal(trade.String); err != nil {
			return err
		}
		if t.Bid, err = parseDecimal(bid.String); err != nil {
			return err
		}
		if t.Ask, err = parseDecimal(ask.String); err != nil {
			return err
		}
		t.Size = size.Int64
		t.BidSize = bidSize.Int64
		t.AskSize = askSize.Int64
		t.Depth = int(depth.Int64)
		t.Exchange = exch.String
		t.BidExchange = bidExch.String
		t.AskExchange = askExch.String
		r.buf = append(r.buf, t)
		n++
	}
	if err = rows.Err(); err != nil {
		return err
	}
	if n < s.pageSize {
		r.done = true
	}
	return nil
}

func (r *sqlReader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}
