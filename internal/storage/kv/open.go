package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/jetprompt/internal/dbx"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a Repository bound to an open database. It owns the connection.
type Store struct {
	Repository

	db      *sql.DB
	dialect dbx.Dialect
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Tx runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &SQLRepository{db: tx, dialect: s.dialect})
	})
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// gooseLogger sends goose progress lines to a logging.Logger at debug level
// instead of stderr.
type gooseLogger struct {
	ctx context.Context
	log logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RunMigrations applies the embedded migrations of gooseDialect
// ("sqlite3" or "postgres") to db. Migration progress goes to log, which
// may be nil to discard it.
func RunMigrations(ctx context.Context, db *sql.DB, gooseDialect string, log logging.Logger) error {
	fsys, err := migrations.For(gooseDialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if log == nil {
		goose.SetLogger(goose.NopLogger())
	} else {
		goose.SetLogger(gooseLogger{ctx: ctx, log: log.With("component", "migrations")})
	}
	defer goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// OpenOption customizes Open.
type OpenOption func(*openOptions)

type openOptions struct {
	log logging.Logger
}

// WithLogger reports migration progress to log.
func WithLogger(log logging.Logger) OpenOption {
	return func(o *openOptions) { o.log = log }
}

// Open connects to the given driver and DSN, applies migrations and returns
// the resulting Store.
func Open(ctx context.Context, driver, dsn string, opts ...OpenOption) (*Store, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		sqlDriver    string
		gooseDialect string
		dialect      dbx.Dialect
	)

	switch driver {
	case DriverSQLite, "":
		sqlDriver, gooseDialect, dialect = "sqlite", "sqlite3", dbx.Question
	case DriverPostgres:
		sqlDriver, gooseDialect, dialect = "pgx", "postgres", dbx.Dollar
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sqlOpen(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// every pooled connection to :memory: would see its own empty database
	if sqlDriver == "sqlite" && isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if err := RunMigrations(ctx, db, gooseDialect, o.log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		Repository: &SQLRepository{db: db, dialect: dialect},
		db:         db,
		dialect:    dialect,
	}, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
