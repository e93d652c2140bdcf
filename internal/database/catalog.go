package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
)

const itemColumns = `i.id, i.kind, i.name, i.sort_name, i.path, i.series_id, i.series_name, i.album,
	i.overview, i.official_rating, i.production_year, i.community_rating, i.critic_rating,
	i.runtime_seconds, i.season_number, i.episode_number, i.disc_number, i.track_number,
	i.date_created, i.release_date, i.smart_list_id`

// Names of the multi-valued fields in item_values.
const (
	valueGenre       = "genre"
	valueTag         = "tag"
	valueStudio      = "studio"
	valuePerson      = "person"
	valueCollection  = "collection"
	valueArtist      = "artist"
	valueAlbumArtist = "album_artist"
)

// valueSlot returns the item slice holding field values.
func valueSlot(it *library.Item, field string) *[]string {
	switch field {
	case valueGenre:
		return &it.Genres
	case valueTag:
		return &it.Tags
	case valueStudio:
		return &it.Studios
	case valuePerson:
		return &it.People
	case valueCollection:
		return &it.Collections
	case valueArtist:
		return &it.Artists
	case valueAlbumArtist:
		return &it.AlbumArtists
	}
	return nil
}

var valueFields = []string{valueGenre, valueTag, valueStudio, valuePerson, valueCollection, valueArtist, valueAlbumArtist}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (library.Item, error) {
	var (
		it                        library.Item
		kind                      string
		runtime, created, release int64
	)
	err := row.Scan(&it.ID, &kind, &it.Name, &it.SortName, &it.Path, &it.SeriesID, &it.SeriesName, &it.Album,
		&it.Overview, &it.OfficialRating, &it.ProductionYear, &it.CommunityRating, &it.CriticRating,
		&runtime, &it.SeasonNumber, &it.EpisodeNumber, &it.DiscNumber, &it.TrackNumber,
		&created, &release, &it.SmartListID)
	if err != nil {
		return it, err
	}
	it.Kind = mediatypes.Kind(kind)
	it.Runtime = time.Duration(runtime) * time.Second
	it.DateCreated = timeOrZero(created)
	it.ReleaseDate = timeOrZero(release)
	return it, nil
}

func inClause(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Items implements library.Catalog. Items come back in insertion order.
func (d *Database) Items(ctx context.Context, kinds []mediatypes.Kind) ([]library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("items", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	where := ""
	args := make([]any, 0, len(kinds))
	if len(kinds) > 0 {
		where = "WHERE i.kind IN (" + inClause(len(kinds)) + ")"
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}

	rows, err := d.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items i "+where+" ORDER BY i.rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []library.Item
	index := make(map[string]int)
	for rows.Next() {
		var it library.Item
		it, err = scanItem(rows)
		if err != nil {
			return nil, err
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	err = d.attachValues(ctx, items, index, "i.kind IN ("+inClause(len(kinds))+")", args, len(kinds) > 0)
	return items, err
}

// attachValues fills the multi-valued fields and collection membership of
// items. filter restricts the query when filtered is true.
func (d *Database) attachValues(ctx context.Context, items []library.Item, index map[string]int, filter string, args []any, filtered bool) error {
	if len(items) == 0 {
		return nil
	}
	where := ""
	if filtered {
		where = "WHERE " + filter
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT v.item_id, v.field, v.value
		FROM item_values v JOIN items i ON i.id = v.item_id
		`+where+`
		ORDER BY v.item_id, v.field, v.position`, args...)
	if err != nil {
		return fmt.Errorf("loading item values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, field, value string
		if err := rows.Scan(&id, &field, &value); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		if slot := valueSlot(&items[i], field); slot != nil {
			*slot = append(*slot, value)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Materialized collections count as collections of their members.
	memberRows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT mi.item_id, ml.name
		FROM materialized_items mi
		JOIN materialized_lists ml ON ml.list_id = mi.list_id AND ml.owner_id = mi.owner_id
		WHERE ml.kind = 'Collection'
		ORDER BY ml.name`)
	if err != nil {
		return fmt.Errorf("loading collection membership: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var id, name string
		if err := memberRows.Scan(&id, &name); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok || slices.Contains(items[i].Collections, name) {
			continue
		}
		items[i].Collections = append(items[i].Collections, name)
	}
	return memberRows.Err()
}

// ItemByID implements library.Catalog.
func (d *Database) ItemByID(ctx context.Context, id string) (*library.Item, error) {
	items, err := d.queryItems(ctx, "item_by_id", "i.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: item %s", library.ErrNotFound, id)
	}
	return &items[0], nil
}

// Episodes implements library.Catalog, ordered by season and episode.
func (d *Database) Episodes(ctx context.Context, seriesID string) ([]library.Item, error) {
	items, err := d.queryItems(ctx, "episodes", "i.kind = 'Episode' AND i.series_id = ?", seriesID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(items, func(a, b library.Item) int {
		if a.SeasonNumber != b.SeasonNumber {
			return a.SeasonNumber - b.SeasonNumber
		}
		return a.EpisodeNumber - b.EpisodeNumber
	})
	return items, nil
}

// FindByName implements library.Catalog. Matching is case-insensitive.
func (d *Database) FindByName(ctx context.Context, name string, exact bool) ([]library.Item, error) {
	if exact {
		return d.queryItems(ctx, "find_by_name", "i.name = ? COLLATE NOCASE", name)
	}
	return d.queryItems(ctx, "find_by_name", "instr(lower(i.name), lower(?)) > 0", name)
}

func (d *Database) queryItems(ctx context.Context, operation, filter string, args ...any) ([]library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items i WHERE "+filter+" ORDER BY i.rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []library.Item
	index := make(map[string]int)
	for rows.Next() {
		var it library.Item
		it, err = scanItem(rows)
		if err != nil {
			return nil, err
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	err = d.attachValues(ctx, items, index, filter, args, true)
	return items, err
}

// UpsertItem inserts or replaces an item and its multi-valued fields.
func (d *Database) UpsertItem(b *Batch, it *library.Item) error {
	if it.ID == "" {
		return errors.New("item id is required")
	}
	if !it.Kind.IsValid() {
		return fmt.Errorf("item %s: unknown kind %q", it.ID, it.Kind)
	}

	result, err := b.Exec(`
	INSERT INTO items (id, kind, name, sort_name, path, series_id, series_name, album, overview,
		official_rating, production_year, community_rating, critic_rating, runtime_seconds,
		season_number, episode_number, disc_number, track_number, date_created, release_date,
		smart_list_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(id) DO UPDATE SET
		kind = excluded.kind,
		name = excluded.name,
		sort_name = excluded.sort_name,
		path = excluded.path,
		series_id = excluded.series_id,
		series_name = excluded.series_name,
		album = excluded.album,
		overview = excluded.overview,
		official_rating = excluded.official_rating,
		production_year = excluded.production_year,
		community_rating = excluded.community_rating,
		critic_rating = excluded.critic_rating,
		runtime_seconds = excluded.runtime_seconds,
		season_number = excluded.season_number,
		episode_number = excluded.episode_number,
		disc_number = excluded.disc_number,
		track_number = excluded.track_number,
		date_created = excluded.date_created,
		release_date = excluded.release_date,
		smart_list_id = excluded.smart_list_id,
		updated_at = strftime('%s', 'now')
	`,
		it.ID, string(it.Kind), it.Name, it.SortName, it.Path, it.SeriesID, it.SeriesName, it.Album, it.Overview,
		it.OfficialRating, it.ProductionYear, it.CommunityRating, it.CriticRating, int64(it.Runtime/time.Second),
		it.SeasonNumber, it.EpisodeNumber, it.DiscNumber, it.TrackNumber, unixOrZero(it.DateCreated), unixOrZero(it.ReleaseDate),
		it.SmartListID,
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", it.ID, err)
	}
	recordRows("upsert_item", result)

	if _, err := b.Exec("DELETE FROM item_values WHERE item_id = ?", it.ID); err != nil {
		return fmt.Errorf("clearing values of %s: %w", it.ID, err)
	}
	for _, field := range valueFields {
		for pos, v := range *valueSlot(it, field) {
			if _, err := b.Exec("INSERT INTO item_values (item_id, field, position, value) VALUES (?, ?, ?, ?)",
				it.ID, field, pos, v); err != nil {
				return fmt.Errorf("writing %s of %s: %w", field, it.ID, err)
			}
		}
	}
	return nil
}

// DeleteItem removes an item. Missing items are not an error.
func (d *Database) DeleteItem(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err == nil {
		recordRows("delete_item", result)
	}
	return err
}
