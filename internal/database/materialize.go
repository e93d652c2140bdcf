package database

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

// maxCollectionGenres bounds the genres copied onto a collection object.
const maxCollectionGenres = 5

// CollectionItemID returns the id of the collection object materialized for
// a smart list.
func CollectionItemID(listID string) string {
	return "smartlist-" + listID
}

// Materialize implements library.Materializer. The list's previous content
// is replaced in one transaction, so a failed write leaves it untouched.
func (d *Database) Materialize(ctx context.Context, r library.Result) (err error) {
	start := time.Now()
	defer func() { recordQuery("materialize", start, err) }()

	b, err := d.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("starting materialization: %w", err)
	}
	defer func() { err = d.EndBatch(b, err) }()

	if _, err = b.ExecContext(ctx, `
		INSERT INTO materialized_lists (list_id, owner_id, kind, name, item_count, updated_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(list_id, owner_id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			item_count = excluded.item_count,
			updated_at = excluded.updated_at
	`, r.ListID, r.OwnerID, string(r.Kind), r.Name, len(r.ItemIDs)); err != nil {
		return fmt.Errorf("writing list %s: %w", r.ListID, err)
	}

	if _, err = b.ExecContext(ctx, "DELETE FROM materialized_items WHERE list_id = ? AND owner_id = ?", r.ListID, r.OwnerID); err != nil {
		return fmt.Errorf("clearing list %s: %w", r.ListID, err)
	}

	stmt, err := b.PrepareContext(ctx, "INSERT INTO materialized_items (list_id, owner_id, position, item_id) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, id := range r.ItemIDs {
		if _, err = stmt.ExecContext(ctx, r.ListID, r.OwnerID, pos, id); err != nil {
			return fmt.Errorf("writing item %s of list %s: %w", id, r.ListID, err)
		}
	}

	if r.Kind == smartlist.KindCollection {
		if _, err = b.ExecContext(ctx, `
			INSERT INTO items (id, kind, name, smart_list_id) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = strftime('%s', 'now')
		`, CollectionItemID(r.ListID), string(mediatypes.KindBoxSet), r.Name, r.ListID); err != nil {
			return fmt.Errorf("writing collection object for %s: %w", r.ListID, err)
		}
	}
	return nil
}

// Capabilities implements library.Materializer.
func (d *Database) Capabilities() library.Capabilities {
	return library.Capabilities{RefreshMetadata: true}
}

// RefreshMetadata copies the most common member genres onto a collection
// object. Playlists carry no metadata of their own.
func (d *Database) RefreshMetadata(ctx context.Context, r library.Result) (err error) {
	if r.Kind != smartlist.KindCollection {
		return nil
	}
	start := time.Now()
	defer func() { recordQuery("refresh_metadata", start, err) }()

	b, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() { err = d.EndBatch(b, err) }()

	rows, err := b.QueryContext(ctx, `
		SELECT v.value, COUNT(*) AS n
		FROM materialized_items mi
		JOIN item_values v ON v.item_id = mi.item_id AND v.field = ?
		WHERE mi.list_id = ? AND mi.owner_id = ?
		GROUP BY v.value COLLATE NOCASE
	`, valueGenre, r.ListID, r.OwnerID)
	if err != nil {
		return err
	}
	type genreCount struct {
		name  string
		count int
	}
	var genres []genreCount
	for rows.Next() {
		var g genreCount
		if err = rows.Scan(&g.name, &g.count); err != nil {
			rows.Close()
			return err
		}
		genres = append(genres, g)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	slices.SortFunc(genres, func(a, b genreCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})

	id := CollectionItemID(r.ListID)
	if _, err = b.ExecContext(ctx, "DELETE FROM item_values WHERE item_id = ? AND field = ?", id, valueGenre); err != nil {
		return err
	}
	for pos, g := range genres[:min(len(genres), maxCollectionGenres)] {
		if _, err = b.ExecContext(ctx, "INSERT INTO item_values (item_id, field, position, value) VALUES (?, ?, ?, ?)",
			id, valueGenre, pos, g.name); err != nil {
			return err
		}
	}
	return nil
}

// MaterializedItems returns the item ids last written for a list and owner.
func (d *Database) MaterializedItems(ctx context.Context, listID, ownerID string) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("materialized_items", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT item_id FROM materialized_items
		WHERE list_id = ? AND owner_id = ?
		ORDER BY position
	`, listID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	return ids, err
}
