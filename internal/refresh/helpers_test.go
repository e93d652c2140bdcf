package refresh

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartlists/internal/clock"
	"smartlists/internal/library"
	"smartlists/internal/library/librarytest"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

var testStart = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store. afterLookup runs after every Lookup with
// the number of lookups of that id so far.
type memStore struct {
	mu          sync.Mutex
	lists       map[string]*smartlist.SmartList
	lookups     map[string]int
	afterLookup func(id string, n int)
}

func newMemStore(lists ...*smartlist.SmartList) *memStore {
	s := &memStore{lists: make(map[string]*smartlist.SmartList), lookups: make(map[string]int)}
	for _, l := range lists {
		s.put(l)
	}
	return s
}

func (s *memStore) put(l *smartlist.SmartList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.lists[l.ID] = &c
}

func (s *memStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, id)
}

func (s *memStore) setEnabled(id string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[id]; ok {
		c := *l
		c.Enabled = enabled
		s.lists[id] = &c
	}
}

func (s *memStore) List(context.Context) ([]*smartlist.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*smartlist.SmartList, 0, len(s.lists))
	for _, l := range s.lists {
		c := *l
		out = append(out, &c)
	}
	return out, nil
}

func (s *memStore) Lookup(_ context.Context, id string) (*smartlist.SmartList, bool, error) {
	s.mu.Lock()
	l, ok := s.lists[id]
	var c smartlist.SmartList
	if ok {
		c = *l
	}
	s.lookups[id]++
	n := s.lookups[id]
	hook := s.afterLookup
	s.mu.Unlock()

	if hook != nil {
		hook(id, n)
	}
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

type harness struct {
	lib   *librarytest.Library
	store *memStore
	clock *clock.Fake
	orch  *Orchestrator
}

func newHarness(t *testing.T, cfg Config, lists ...*smartlist.SmartList) *harness {
	t.Helper()
	lib := librarytest.New()
	lib.AddUser(library.User{ID: "u1", Name: "Alice"})
	lib.AddUser(library.User{ID: "u2", Name: "Bob"})

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.MaxConcurrentLists == 0 {
		cfg.MaxConcurrentLists = 4
	}

	h := &harness{
		lib:   lib,
		store: newMemStore(lists...),
		clock: clock.NewFake(testStart),
	}
	h.orch = New(Options{
		Store:        h.store,
		Catalog:      lib,
		Users:        library.NewUserCache(lib),
		Materializer: lib,
		Clock:        h.clock,
		Config:       cfg,
	})
	require.NoError(t, h.orch.Reload(context.Background()))
	t.Cleanup(h.orch.Close)
	return h
}

// run starts the orchestrator loop and stops it when the test ends.
func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) waitWrites(t *testing.T, listID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.lib.WritesFor(listID) >= n },
		2*time.Second, 5*time.Millisecond, "waiting for %d writes of %s", n, listID)
}

func newList(id string, kind smartlist.ListKind, exprs ...smartlist.Expression) *smartlist.SmartList {
	l := smartlist.New()
	l.ID = id
	l.Name = "List " + id
	l.Kind = kind
	l.UserID = "u1"
	if len(exprs) > 0 {
		l.ExpressionSets = []smartlist.ExpressionSet{{Expressions: exprs}}
	}
	return l
}

func expr(field smartlist.Field, op smartlist.Operator, value string) smartlist.Expression {
	return smartlist.Expression{Field: field, Operator: op, Value: value}
}

func movie(id, name string, genres ...string) library.Item {
	return library.Item{ID: id, Kind: mediatypes.KindMovie, Name: name, Genres: genres}
}

func movies(n int) []library.Item {
	items := make([]library.Item, n)
	for i := range items {
		genre := "Drama"
		if i%3 == 0 {
			genre = "Comedy"
		}
		items[i] = movie(fmt.Sprintf("m%04d", i), fmt.Sprintf("Movie %d", n-i), genre)
		items[i].ProductionYear = 1950 + i%70
	}
	return items
}
