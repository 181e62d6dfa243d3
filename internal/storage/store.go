package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DBFile is the database file name inside the data directory.
const DBFile = "ideaplate.db"

const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"

// Store is the persistence layer. Every method is a short unit of work;
// single-row writes are atomic, nothing spans rows unless stated.
type Store struct {
	db      *sql.DB
	dataDir string
	clock   *clock
}

// Option configures a Store.
type Option func(*Store)

// WithNow replaces the wall clock used for server timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.clock.now = now }
}

// Open opens (or creates) the database under dataDir and runs migrations.
func Open(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite3", "file:"+dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	s := &Store{db: db, dataDir: dataDir, clock: &clock{now: time.Now}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the base data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// clock hands out strictly increasing server timestamps in unix microseconds.
type clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixMicro()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
