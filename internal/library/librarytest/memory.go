// Package librarytest provides an in-memory implementation of the library
// interfaces for tests.
package librarytest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
)

// Library is an in-memory Catalog, UserDirectory and Materializer. The zero
// value is not usable; call New.
type Library struct {
	mu       sync.Mutex
	items    []library.Item
	users    []library.User
	userData map[string]map[string]library.UserData
	results  map[string]library.Result
	writes   []library.Result

	// BeforeMaterialize, when set, runs before each write and may block or
	// return an error to fail the write.
	BeforeMaterialize func(ctx context.Context, r library.Result) error
	// Caps is returned by Capabilities.
	Caps      library.Capabilities
	refreshes []string
}

// New returns an empty library.
func New() *Library {
	return &Library{
		userData: make(map[string]map[string]library.UserData),
		results:  make(map[string]library.Result),
	}
}

// AddItems appends items in catalog order.
func (l *Library) AddItems(items ...library.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, items...)
}

// RemoveItem deletes an item by id.
func (l *Library) RemoveItem(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.DeleteFunc(l.items, func(it library.Item) bool { return it.ID == id })
}

// AddUser registers a user.
func (l *Library) AddUser(u library.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = append(l.users, u)
}

// SetUserData stores one user's state for one item.
func (l *Library) SetUserData(userID string, d library.UserData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.userData[userID]
	if m == nil {
		m = make(map[string]library.UserData)
		l.userData[userID] = m
	}
	m[d.ItemID] = d
}

// Items implements library.Catalog.
func (l *Library) Items(_ context.Context, kinds []mediatypes.Kind) ([]library.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []library.Item
	for _, it := range l.items {
		if len(kinds) == 0 || slices.Contains(kinds, it.Kind) {
			out = append(out, it)
		}
	}
	return out, nil
}

// ItemByID implements library.Catalog.
func (l *Library) ItemByID(_ context.Context, id string) (*library.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			it := l.items[i]
			return &it, nil
		}
	}
	return nil, library.ErrNotFound
}

// Episodes implements library.Catalog.
func (l *Library) Episodes(_ context.Context, seriesID string) ([]library.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []library.Item
	for _, it := range l.items {
		if it.Kind == mediatypes.KindEpisode && it.SeriesID == seriesID {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b library.Item) int {
		if a.SeasonNumber != b.SeasonNumber {
			return a.SeasonNumber - b.SeasonNumber
		}
		return a.EpisodeNumber - b.EpisodeNumber
	})
	return out, nil
}

// FindByName implements library.Catalog.
func (l *Library) FindByName(_ context.Context, name string, exact bool) ([]library.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	needle := strings.ToLower(name)
	var out []library.Item
	for _, it := range l.items {
		have := strings.ToLower(it.Name)
		if (exact && have == needle) || (!exact && strings.Contains(have, needle)) {
			out = append(out, it)
		}
	}
	return out, nil
}

// User implements library.UserDirectory.
func (l *Library) User(_ context.Context, ref string) (library.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.ID == ref || strings.EqualFold(u.Name, ref) {
			return u, nil
		}
	}
	return library.User{}, library.ErrNotFound
}

// Users implements library.UserDirectory.
func (l *Library) Users(context.Context) ([]library.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.users), nil
}

// UserData implements library.UserDirectory.
func (l *Library) UserData(_ context.Context, userID string) (map[string]library.UserData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]library.UserData, len(l.userData[userID]))
	for k, v := range l.userData[userID] {
		out[k] = v
	}
	return out, nil
}

// Materialize implements library.Materializer.
func (l *Library) Materialize(ctx context.Context, r library.Result) error {
	if hook := l.BeforeMaterialize; hook != nil {
		if err := hook(ctx, r); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r.ItemIDs = slices.Clone(r.ItemIDs)
	l.results[key(r.ListID, r.OwnerID)] = r
	l.writes = append(l.writes, r)
	return nil
}

// Capabilities implements library.Materializer.
func (l *Library) Capabilities() library.Capabilities {
	return l.Caps
}

// RefreshMetadata implements library.Materializer.
func (l *Library) RefreshMetadata(_ context.Context, r library.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes = append(l.refreshes, r.ListID)
	return nil
}

// Result returns the last materialized content for a list and owner.
func (l *Library) Result(listID, ownerID string) (library.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.results[key(listID, ownerID)]
	return r, ok
}

// Writes returns every materialization in call order.
func (l *Library) Writes() []library.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.writes)
}

// WritesFor counts materializations of one list.
func (l *Library) WritesFor(listID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, w := range l.writes {
		if w.ListID == listID {
			n++
		}
	}
	return n
}

// MetadataRefreshes returns the list ids passed to RefreshMetadata.
func (l *Library) MetadataRefreshes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.refreshes)
}

func key(listID, ownerID string) string {
	return listID + "\x00" + ownerID
}
