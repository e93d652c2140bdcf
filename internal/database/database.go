package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"smartlists/internal/logging"
	"smartlists/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the SQLite host: catalog, users, change log and materialized
// lists.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (and if needed creates) the database FILE at dbPath. The parent
// directory must already exist and be writable; startup.LoadConfig checks it.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Catalog items
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		sort_name TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		series_id TEXT NOT NULL DEFAULT '',
		series_name TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		overview TEXT NOT NULL DEFAULT '',
		official_rating TEXT NOT NULL DEFAULT '',
		production_year INTEGER NOT NULL DEFAULT 0,
		community_rating REAL NOT NULL DEFAULT 0,
		critic_rating REAL NOT NULL DEFAULT 0,
		runtime_seconds INTEGER NOT NULL DEFAULT 0,
		season_number INTEGER NOT NULL DEFAULT 0,
		episode_number INTEGER NOT NULL DEFAULT 0,
		disc_number INTEGER NOT NULL DEFAULT 0,
		track_number INTEGER NOT NULL DEFAULT 0,
		date_created INTEGER NOT NULL DEFAULT 0,
		release_date INTEGER NOT NULL DEFAULT 0,
		smart_list_id TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
	CREATE INDEX IF NOT EXISTS idx_items_series ON items(series_id);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name COLLATE NOCASE);

	-- Multi-valued item metadata, in declaration order
	CREATE TABLE IF NOT EXISTS item_values (
		item_id TEXT NOT NULL,
		field TEXT NOT NULL,
		position INTEGER NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (item_id, field, position),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_item_values_value ON item_values(field, value COLLATE NOCASE);

	-- Library users
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Per-user playback state
	CREATE TABLE IF NOT EXISTS user_data (
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		played INTEGER NOT NULL DEFAULT 0,
		play_count INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		last_played INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, item_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	-- Change log consumed by the watcher
	CREATE TABLE IF NOT EXISTS changes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		item_id TEXT NOT NULL DEFAULT '',
		item_kind TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		changed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Collection objects written by materialization are not library changes.
	CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items WHEN new.smart_list_id = '' BEGIN
		INSERT INTO changes(kind, item_id, item_kind) VALUES ('ItemAdded', new.id, new.kind);
	END;

	CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items WHEN old.smart_list_id = '' BEGIN
		INSERT INTO changes(kind, item_id, item_kind) VALUES ('ItemRemoved', old.id, old.kind);
	END;

	CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items WHEN new.smart_list_id = '' BEGIN
		INSERT INTO changes(kind, item_id, item_kind) VALUES ('ItemUpdated', new.id, new.kind);
	END;

	CREATE TRIGGER IF NOT EXISTS user_data_ai AFTER INSERT ON user_data BEGIN
		INSERT INTO changes(kind, item_id, item_kind, user_id)
		VALUES ('PlaybackChanged', new.item_id, COALESCE((SELECT kind FROM items WHERE id = new.item_id), ''), new.user_id);
	END;

	CREATE TRIGGER IF NOT EXISTS user_data_au AFTER UPDATE ON user_data BEGIN
		INSERT INTO changes(kind, item_id, item_kind, user_id)
		VALUES ('PlaybackChanged', new.item_id, COALESCE((SELECT kind FROM items WHERE id = new.item_id), ''), new.user_id);
	END;

	CREATE TRIGGER IF NOT EXISTS users_ai AFTER INSERT ON users BEGIN
		INSERT INTO changes(kind, user_id) VALUES ('UserChanged', new.id);
	END;

	CREATE TRIGGER IF NOT EXISTS users_au AFTER UPDATE ON users BEGIN
		INSERT INTO changes(kind, user_id) VALUES ('UserChanged', new.id);
	END;

	CREATE TRIGGER IF NOT EXISTS users_ad AFTER DELETE ON users BEGIN
		INSERT INTO changes(kind, user_id) VALUES ('UserChanged', old.id);
	END;

	-- Materialized lists, one row per list and owner
	CREATE TABLE IF NOT EXISTS materialized_lists (
		list_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (list_id, owner_id)
	);

	CREATE TABLE IF NOT EXISTS materialized_items (
		list_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		PRIMARY KEY (list_id, owner_id, position),
		FOREIGN KEY (list_id, owner_id) REFERENCES materialized_lists(list_id, owner_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_materialized_items_item ON materialized_items(item_id);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: materialized_lists.item_count
	var countExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('materialized_lists')
		WHERE name='item_count'
	`).Scan(&countExists)
	if err != nil {
		return fmt.Errorf("failed to check for item_count column: %w", err)
	}

	if !countExists {
		logging.Info("Migrating database: adding item_count column to materialized_lists table")
		if _, err := d.db.ExecContext(ctx, `ALTER TABLE materialized_lists ADD COLUMN item_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add item_count column: %w", err)
		}
		if _, err := d.db.ExecContext(ctx, `
			UPDATE materialized_lists SET item_count = (
				SELECT COUNT(*) FROM materialized_items mi
				WHERE mi.list_id = materialized_lists.list_id AND mi.owner_id = materialized_lists.owner_id
			)
		`); err != nil {
			return fmt.Errorf("failed to initialize item_count values: %w", err)
		}
		logging.Info("Migration complete: item_count column added and initialized")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Batch is a write transaction started by BeginBatch.
type Batch struct {
	*sql.Tx
	start time.Time
}

// BeginBatch starts a write transaction. The caller must call EndBatch.
func (d *Database) BeginBatch(ctx context.Context) (*Batch, error) {
	d.mu.Lock()
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Batch{Tx: tx, start: start}, nil
}

// EndBatch commits the batch, or rolls it back when err is non-nil.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.Commit()
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

func recordRows(operation string, result sql.Result) {
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(rows))
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", path, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", path)
			}
		}
	}

	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
