package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "ratings.db"

// PoolConfig bounds the sql.DB pool. sqlite serializes writers, so the pool stays small.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpen: 8, MaxIdle: 4, MaxLifetime: 30 * time.Minute}
}

type stmtKey int

const (
	stmtInsertRating stmtKey = iota
	stmtGetRating
	stmtListRatings
	stmtTopRatings
	stmtCountRatings
)

const ratingColumns = `id, model_id, name, net_score, payload, created_at`

var statements = map[stmtKey]string{
	stmtInsertRating: `INSERT INTO ratings (` + ratingColumns + `) VALUES (?, ?, ?, ?, ?, ?)`,
	stmtGetRating:    `SELECT ` + ratingColumns + ` FROM ratings WHERE id = ?`,
	stmtListRatings: `SELECT ` + ratingColumns + ` FROM ratings
		WHERE model_id = ? ORDER BY created_at DESC LIMIT ?`,
	// latest rating per model, ranked by score
	stmtTopRatings: `SELECT ` + ratingColumns + ` FROM (
		SELECT *, ROW_NUMBER() OVER (PARTITION BY model_id ORDER BY created_at DESC) AS rn
		FROM ratings
	) WHERE rn = 1 ORDER BY net_score DESC, created_at DESC LIMIT ?`,
	stmtCountRatings: `SELECT COUNT(*) FROM ratings`,
}

// migrations are applied in order; PRAGMA user_version records how many ran
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS ratings (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			name TEXT NOT NULL,
			net_score REAL NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_model ON ratings(model_id, created_at DESC)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_ratings_score ON ratings(net_score DESC)`,
	},
}

// DB is the rating history store. Statements are prepared once at open and
// are read-only afterwards.
type DB struct {
	*sql.DB
	pool          PoolConfig
	schemaVersion int
	prepared      map[stmtKey]*sql.Stmt
}

// NewDB opens (creating if needed) the rating history database in dataDir
func NewDB(dataDir string) (*DB, error) {
	return Open(context.Background(), dataDir, DefaultPoolConfig())
}

// Open is NewDB with an explicit pool configuration
func Open(ctx context.Context, dataDir string, pool PoolConfig) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(pool.MaxOpen)
	conn.SetMaxIdleConns(pool.MaxIdle)
	conn.SetConnMaxLifetime(pool.MaxLifetime)

	db := &DB{DB: conn, pool: pool, prepared: make(map[stmtKey]*sql.Stmt, len(statements))}
	if err := db.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"schema_version", db.schemaVersion,
		"max_open_conns", pool.MaxOpen)
	return db, nil
}

func (db *DB) init(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for key, query := range statements {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %d: %w", key, err)
		}
		db.prepared[key] = stmt
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&db.schemaVersion); err != nil {
		return err
	}

	for v := db.schemaVersion; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, query := range migrations[v] {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		db.schemaVersion = v + 1
		slog.Debug("Applied migration", "version", v+1)
	}
	return nil
}

func (db *DB) stmt(key stmtKey) (*sql.Stmt, error) {
	stmt, ok := db.prepared[key]
	if !ok {
		return nil, fmt.Errorf("statement %d is not prepared", key)
	}
	return stmt, nil
}

// SchemaVersion is the number of applied migrations
func (db *DB) SchemaVersion() int {
	return db.schemaVersion
}

// GetPoolStats returns connection pool statistics for the health endpoint
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.Stats()
	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": db.pool.MaxOpen,
		"max_idle_connections": db.pool.MaxIdle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"schema_version":       db.schemaVersion,
	}
}

// Close closes the prepared statements and the connection
func (db *DB) Close() error {
	for key, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "statement", key, "error", err)
		}
	}
	db.prepared = nil
	return db.DB.Close()
}
