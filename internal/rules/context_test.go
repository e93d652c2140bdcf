package rules

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlists/internal/library"
	"smartlists/internal/library/librarytest"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

// gatedCatalog blocks ItemByID for one series until released.
type gatedCatalog struct {
	*librarytest.Library
	slowID  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	slow    atomic.Int32
}

func (c *gatedCatalog) ItemByID(ctx context.Context, id string) (*library.Item, error) {
	if id == c.slowID {
		c.slow.Add(1)
		c.once.Do(func() { close(c.entered) })
		<-c.release
	}
	return c.Library.ItemByID(ctx, id)
}

func TestParentLoadsOnceWithoutBlockingOtherKeys(t *testing.T) {
	lib := librarytest.New()
	lib.AddUser(library.User{ID: "u1", Name: "Alice"})
	lib.AddItems(
		library.Item{ID: "s-slow", Kind: mediatypes.KindSeries, Name: "Slow Show"},
		library.Item{ID: "s-fast", Kind: mediatypes.KindSeries, Name: "Fast Show"},
	)
	cat := &gatedCatalog{
		Library: lib,
		slowID:  "s-slow",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(cat, library.NewUserCache(lib), smartlist.NameAffixes{})
	ec := engine.NewContext(context.Background(), "test", "u1", evalNow)

	var wg sync.WaitGroup
	parents := make([]*library.Item, 8)
	for i := range parents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parents[i] = ec.parent("s-slow")
		}(i)
	}

	select {
	case <-cat.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow series load never started")
	}

	done := make(chan *library.Item, 1)
	go func() { done <- ec.parent("s-fast") }()
	select {
	case p := <-done:
		require.NotNil(t, p)
		assert.Equal(t, "Fast Show", p.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("loading one series blocked an unrelated lookup")
	}

	close(cat.release)
	wg.Wait()

	assert.Equal(t, int32(1), cat.slow.Load())
	for _, p := range parents {
		require.NotNil(t, p)
		assert.Equal(t, "Slow Show", p.Name)
	}
	assert.Same(t, parents[0], ec.parent("s-slow"))
	assert.Equal(t, int32(1), cat.slow.Load())
}

func TestWarningsAreDeduplicatedAcrossContexts(t *testing.T) {
	f := newFixture(t, smartlist.NameAffixes{})
	w := NewWarnings("shared")
	for _, owner := range []string{"u1", "u2"} {
		ec := f.engine.NewContextWithWarnings(context.Background(), owner, evalNow, w)
		assert.False(t, ec.loadUser("ghost").ok)
		assert.False(t, ec.loadUser("ghost").ok)
	}
	assert.Len(t, w.List(), 1)
	assert.Contains(t, w.List()[0], "ghost")
}
