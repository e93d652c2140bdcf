package database

import (
	"context"
	"fmt"

	"smartlists/internal/metrics"
)

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats(ctx context.Context) (metrics.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := metrics.Stats{
		ItemsByKind: make(map[string]int),
		ListsByKind: make(map[string]int),
	}

	if err := d.countBy(ctx, "SELECT kind, COUNT(*) FROM items GROUP BY kind", stats.ItemsByKind); err != nil {
		return stats, fmt.Errorf("counting items: %w", err)
	}
	if err := d.countBy(ctx, "SELECT kind, COUNT(*) FROM materialized_lists GROUP BY kind", stats.ListsByKind); err != nil {
		return stats, fmt.Errorf("counting lists: %w", err)
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.Users); err != nil {
		return stats, fmt.Errorf("counting users: %w", err)
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&stats.PendingChanges); err != nil {
		return stats, fmt.Errorf("counting changes: %w", err)
	}
	stats.OpenConnections = d.db.Stats().OpenConnections
	return stats, nil
}

func (d *Database) countBy(ctx context.Context, query string, into map[string]int) error {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
