package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jengzang/watchdog-backend-go/internal/logging"
)

var (
	db   *sql.DB
	once sync.Once
)

// Config holds database configuration
type Config struct {
	Path string
}

// BusyTimeout is how long a connection waits on a locked database before failing
const BusyTimeout = 5 * time.Second

// dsn applies the connection pragmas to every pooled connection, not just the first one
func dsn(path string) string {
	// WAL lets readers proceed while the ingestion path appends
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, BusyTimeout.Milliseconds())
}

// Open opens a sqlite database, applies connection pragmas and runs pending migrations
func Open(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := MigrateUp(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// Init initializes the process-wide database connection
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		db, err = Open(cfg)
		if err != nil {
			return
		}
		logging.Info().Str("path", cfg.Path).Msg("Database initialized")
	})

	return err
}

// GetDB returns the database instance
func GetDB() *sql.DB {
	if db == nil {
		logging.Fatal().Msg("Database not initialized. Call Init() first.")
	}
	return db
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
