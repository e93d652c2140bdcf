package rules

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"smartlists/internal/library"
	"smartlists/internal/logging"
)

// Warnings collects the distinct warnings raised during one list refresh.
// The contexts of every owner of a list share one value, so a problem such
// as an unresolvable user is reported once per refresh.
type Warnings struct {
	listID string

	mu   sync.Mutex
	seen map[string]bool
	msgs []string
}

// NewWarnings returns an empty collector for listID.
func NewWarnings(listID string) *Warnings {
	return &Warnings{listID: listID, seen: make(map[string]bool)}
}

// add records and logs a warning the first time key is seen.
func (w *Warnings) add(key, format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	msg := fmt.Sprintf(format, args...)
	w.msgs = append(w.msgs, msg)
	logging.Warn("List %s: %s", w.listID, msg)
}

// List returns the warnings in the order they were first raised.
func (w *Warnings) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

// EvalContext carries the per-refresh state shared by every item evaluated
// for one list and one owner: the evaluation instant, the owner, and lazily
// loaded caches of user data, parent series and next-unwatched episodes.
// It is safe for concurrent use by the evaluation workers. Loads run outside
// the cache lock; concurrent loads of the same key are collapsed.
type EvalContext struct {
	ctx     context.Context
	now     time.Time
	userID  string
	catalog library.Catalog
	users   *library.UserCache
	warn    *Warnings
	loads   singleflight.Group

	mu      sync.Mutex
	data    map[string]*userState
	parents map[string]*library.Item
	next    map[nextKey]string
}

type userState struct {
	items map[string]library.UserData
	ok    bool
}

type nextKey struct {
	seriesID         string
	userRef          string
	includeUnwatched bool
}

// NewContext creates the evaluation context for one list refresh on behalf of
// userID (the owner being evaluated).
func (e *Engine) NewContext(ctx context.Context, listID, userID string, now time.Time) *EvalContext {
	return e.NewContextWithWarnings(ctx, userID, now, NewWarnings(listID))
}

// NewContextWithWarnings is NewContext reporting into a shared collector.
func (e *Engine) NewContextWithWarnings(ctx context.Context, userID string, now time.Time, w *Warnings) *EvalContext {
	return &EvalContext{
		ctx:     ctx,
		now:     now,
		userID:  userID,
		catalog: e.catalog,
		users:   e.users,
		warn:    w,
		data:    make(map[string]*userState),
		parents: make(map[string]*library.Item),
		next:    make(map[nextKey]string),
	}
}

// Now returns the evaluation instant.
func (ec *EvalContext) Now() time.Time { return ec.now }

// UserID returns the owner the context evaluates for.
func (ec *EvalContext) UserID() string { return ec.userID }

// Warnings returns the distinct warnings raised while evaluating.
func (ec *EvalContext) Warnings() []string { return ec.warn.List() }

// ItemData returns the owner's state for an item; the zero value when unknown.
func (ec *EvalContext) ItemData(itemID string) library.UserData {
	d, _ := ec.userItemData(ec.userID, itemID)
	return d
}

func (ec *EvalContext) effectiveUser(override string) string {
	if override != "" {
		return override
	}
	return ec.userID
}

// userItemData returns one user's state for an item. ok is false when the
// user reference cannot be resolved.
func (ec *EvalContext) userItemData(userRef, itemID string) (library.UserData, bool) {
	st := ec.loadUser(userRef)
	if !st.ok {
		return library.UserData{}, false
	}
	d := st.items[itemID]
	d.ItemID = itemID
	return d, true
}

// cached returns the value under key from the cache read by lookup, loading
// it with fetch at most once at a time. store runs under ec.mu.
func cached[T any](ec *EvalContext, key string, lookup func() (T, bool), fetch func() T, store func(T)) T {
	ec.mu.Lock()
	v, ok := lookup()
	ec.mu.Unlock()
	if ok {
		return v
	}

	res, _, _ := ec.loads.Do(key, func() (interface{}, error) {
		ec.mu.Lock()
		v, ok := lookup()
		ec.mu.Unlock()
		if ok {
			return v, nil
		}
		v = fetch()
		ec.mu.Lock()
		store(v)
		ec.mu.Unlock()
		return v, nil
	})
	return res.(T)
}

func (ec *EvalContext) loadUser(userRef string) *userState {
	return cached(ec, "user\x00"+userRef,
		func() (*userState, bool) { st, ok := ec.data[userRef]; return st, ok },
		func() *userState { return ec.fetchUser(userRef) },
		func(st *userState) { ec.data[userRef] = st },
	)
}

func (ec *EvalContext) fetchUser(userRef string) *userState {
	st := &userState{}
	if ec.users == nil {
		ec.warn.add("nousers", "no user directory configured")
		return st
	}
	u, err := ec.users.Resolve(ec.ctx, userRef)
	if err != nil {
		ec.warn.add("user:"+userRef, "user %q could not be resolved: %v", userRef, err)
		return st
	}
	items, err := ec.users.Directory().UserData(ec.ctx, u.ID)
	if err != nil {
		ec.warn.add("userdata:"+userRef, "loading data for user %q: %v", userRef, err)
		return st
	}
	st.items = items
	st.ok = true
	return st
}

// parent returns the series an episode or season belongs to, or nil.
func (ec *EvalContext) parent(seriesID string) *library.Item {
	if seriesID == "" {
		return nil
	}
	return cached(ec, "series\x00"+seriesID,
		func() (*library.Item, bool) { p, ok := ec.parents[seriesID]; return p, ok },
		func() *library.Item {
			p, err := ec.catalog.ItemByID(ec.ctx, seriesID)
			if err != nil {
				if !errors.Is(err, library.ErrNotFound) {
					ec.warn.add("series:"+seriesID, "loading series %s: %v", seriesID, err)
				}
				return nil
			}
			return p
		},
		func(p *library.Item) { ec.parents[seriesID] = p },
	)
}

// nextUnwatched returns the id of the first unplayed episode of a series in
// broadcast order for a user, or "" when there is none. Series the user has
// not started only qualify when includeUnwatched is set.
func (ec *EvalContext) nextUnwatched(seriesID, userRef string, includeUnwatched bool) string {
	if seriesID == "" {
		return ""
	}
	key := nextKey{seriesID: seriesID, userRef: userRef, includeUnwatched: includeUnwatched}
	return cached(ec, "next\x00"+seriesID+"\x00"+userRef+"\x00"+strconv.FormatBool(includeUnwatched),
		func() (string, bool) { id, ok := ec.next[key]; return id, ok },
		func() string { return ec.findNextUnwatched(seriesID, userRef, includeUnwatched) },
		func(id string) { ec.next[key] = id },
	)
}

func (ec *EvalContext) findNextUnwatched(seriesID, userRef string, includeUnwatched bool) string {
	st := ec.loadUser(userRef)
	if !st.ok {
		return ""
	}
	episodes, err := ec.catalog.Episodes(ec.ctx, seriesID)
	if err != nil {
		ec.warn.add("episodes:"+seriesID, "loading episodes of %s: %v", seriesID, err)
		return ""
	}

	started := false
	first := ""
	for _, ep := range episodes {
		if st.items[ep.ID].Played {
			started = true
		} else if first == "" {
			first = ep.ID
		}
	}
	if !started && !includeUnwatched {
		return ""
	}
	return first
}
