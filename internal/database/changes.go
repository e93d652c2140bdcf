package database

import (
	"context"
	"time"
)

// Change is one row of the change log.
type Change struct {
	Seq      int64
	Kind     string
	ItemID   string
	ItemKind string
	UserID   string
	At       time.Time
}

// Changes returns up to limit change log rows after seq, oldest first.
func (d *Database) Changes(ctx context.Context, after int64, limit int) ([]Change, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("changes", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT seq, kind, item_id, item_kind, user_id, changed_at
		FROM changes WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c  Change
			at int64
		)
		if err = rows.Scan(&c.Seq, &c.Kind, &c.ItemID, &c.ItemKind, &c.UserID, &at); err != nil {
			return nil, err
		}
		c.At = time.Unix(at, 0).UTC()
		changes = append(changes, c)
	}
	err = rows.Err()
	return changes, err
}

// LatestChangeSeq returns the newest change sequence number, 0 when the log
// is empty.
func (d *Database) LatestChangeSeq(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var seq int64
	err := d.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM changes").Scan(&seq)
	return seq, err
}

// PruneChanges deletes change log rows up to and including seq.
func (d *Database) PruneChanges(ctx context.Context, upTo int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_changes", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM changes WHERE seq <= ?", upTo)
	if err != nil {
		return 0, err
	}
	recordRows("prune_changes", result)
	return result.RowsAffected()
}
