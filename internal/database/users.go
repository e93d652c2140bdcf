package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartlists/internal/library"
)

// User implements library.UserDirectory. ref is a user id or a
// case-insensitive user name.
func (d *Database) User(ctx context.Context, ref string) (library.User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("user", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u library.User
	err = d.db.QueryRowContext(ctx, `
		SELECT id, name FROM users
		WHERE id = ? OR name = ? COLLATE NOCASE
		ORDER BY id = ? DESC
		LIMIT 1
	`, ref, ref, ref).Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("%w: user %s", library.ErrNotFound, ref)
	}
	return u, err
}

// Users implements library.UserDirectory.
func (d *Database) Users(ctx context.Context) ([]library.User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("users", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id, name FROM users ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []library.User
	for rows.Next() {
		var u library.User
		if err = rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	err = rows.Err()
	return users, err
}

// UserData implements library.UserDirectory.
func (d *Database) UserData(ctx context.Context, userID string) (map[string]library.UserData, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("user_data", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT item_id, played, play_count, is_favorite, last_played
		FROM user_data WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := make(map[string]library.UserData)
	for rows.Next() {
		var (
			ud         library.UserData
			lastPlayed int64
		)
		if err = rows.Scan(&ud.ItemID, &ud.Played, &ud.PlayCount, &ud.IsFavorite, &lastPlayed); err != nil {
			return nil, err
		}
		ud.LastPlayed = timeOrZero(lastPlayed)
		data[ud.ItemID] = ud
	}
	err = rows.Err()
	return data, err
}

// UpsertUser inserts or renames a user.
func (d *Database) UpsertUser(b *Batch, u library.User) error {
	if u.ID == "" || u.Name == "" {
		return errors.New("user id and name are required")
	}
	_, err := b.Exec(`
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
		WHERE users.name != excluded.name
	`, u.ID, u.Name)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

const upsertUserData = `
	INSERT INTO user_data (user_id, item_id, played, play_count, is_favorite, last_played)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, item_id) DO UPDATE SET
		played = excluded.played,
		play_count = excluded.play_count,
		is_favorite = excluded.is_favorite,
		last_played = excluded.last_played
`

func userDataArgs(userID string, ud library.UserData) []any {
	return []any{userID, ud.ItemID, boolInt(ud.Played), ud.PlayCount, boolInt(ud.IsFavorite), unixOrZero(ud.LastPlayed)}
}

// PutUserData writes one user's state for one item inside a batch.
func (d *Database) PutUserData(b *Batch, userID string, ud library.UserData) error {
	if _, err := b.Exec(upsertUserData, userDataArgs(userID, ud)...); err != nil {
		return fmt.Errorf("writing user data %s/%s: %w", userID, ud.ItemID, err)
	}
	return nil
}

// SetUserData records playback state, as a host would after playback.
func (d *Database) SetUserData(ctx context.Context, userID string, ud library.UserData) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_user_data", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, upsertUserData, userDataArgs(userID, ud)...)
	return err
}
