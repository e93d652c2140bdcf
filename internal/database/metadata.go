package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

const changeCursorKey = "change_cursor"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetChangeCursor returns the last change sequence the watcher consumed.
// Returns 0 if the watcher never ran.
func (d *Database) GetChangeCursor(ctx context.Context) (int64, error) {
	value, err := d.GetMetadata(ctx, changeCursorKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// SetChangeCursor stores the last consumed change sequence.
func (d *Database) SetChangeCursor(ctx context.Context, seq int64) error {
	return d.SetMetadata(ctx, changeCursorKey, strconv.FormatInt(seq, 10))
}
