package watcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"smartlists/internal/database"
	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
)

type fakeSource struct {
	mu       sync.Mutex
	rows     []database.Change
	cursor   int64
	pruned   int64
	failNext error
}

func (f *fakeSource) add(kind, itemID, itemKind, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := int64(1)
	if n := len(f.rows); n > 0 {
		seq = f.rows[n-1].Seq + 1
	} else if f.pruned > 0 {
		seq = f.pruned + 1
	}
	f.rows = append(f.rows, database.Change{Seq: seq, Kind: kind, ItemID: itemID, ItemKind: itemKind, UserID: userID, At: time.Unix(seq, 0)})
}

func (f *fakeSource) Changes(_ context.Context, after int64, limit int) ([]database.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	var out []database.Change
	for _, r := range f.rows {
		if r.Seq > after && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) PruneChanges(_ context.Context, upTo int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.rows)
	f.rows = slices.DeleteFunc(f.rows, func(r database.Change) bool { return r.Seq <= upTo })
	f.pruned = upTo
	return int64(before - len(f.rows)), nil
}

func (f *fakeSource) GetChangeCursor(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor, nil
}

func (f *fakeSource) SetChangeCursor(_ context.Context, seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = seq
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []library.ChangeEvent
}

func (s *recordingSink) Notify(ev library.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) all() []library.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

type countingReloader struct {
	mu    sync.Mutex
	count int
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingReloader) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestGroup(t *testing.T) {
	rows := []database.Change{
		{Seq: 1, Kind: "ItemAdded", ItemID: "m1", ItemKind: "Movie"},
		{Seq: 2, Kind: "ItemAdded", ItemID: "e1", ItemKind: "Episode"},
		{Seq: 3, Kind: "ItemAdded", ItemID: "m1", ItemKind: "Movie"},
		{Seq: 4, Kind: "PlaybackChanged", ItemID: "m1", ItemKind: "Movie", UserID: "u1"},
		{Seq: 5, Kind: "PlaybackChanged", ItemID: "m2", ItemKind: "Movie", UserID: "u2"},
		{Seq: 6, Kind: "Bogus"},
		{Seq: 7, Kind: "UserChanged", UserID: "u1"},
	}

	events := Group(rows)
	if len(events) != 4 {
		t.Fatalf("Group returned %d events, want 4: %+v", len(events), events)
	}

	added := events[0]
	if added.Kind != library.ItemAdded || !slices.Equal(added.ItemIDs, []string{"m1", "e1"}) {
		t.Errorf("unexpected added event %+v", added)
	}
	if !slices.Equal(added.Kinds, []mediatypes.Kind{mediatypes.KindMovie, mediatypes.KindEpisode}) {
		t.Errorf("unexpected kinds %v", added.Kinds)
	}
	if events[1].UserID != "u1" || events[2].UserID != "u2" {
		t.Error("playback changes of different users must stay separate")
	}
	if events[3].Kind != library.UserChanged || len(events[3].ItemIDs) != 0 {
		t.Errorf("unexpected user event %+v", events[3])
	}
}

func TestPollForwardsAndPrunes(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	w := New(src, sink, nil)
	ctx := context.Background()

	src.add("ItemAdded", "m1", "Movie", "")
	src.add("ItemAdded", "m2", "Movie", "")
	src.add("ItemRemoved", "m3", "Movie", "")

	n, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Poll forwarded %d events, want 2", n)
	}
	if src.cursor != 3 {
		t.Errorf("cursor = %d, want 3", src.cursor)
	}
	if len(src.rows) != 0 {
		t.Errorf("consumed rows should be pruned, %d left", len(src.rows))
	}

	n, err = w.Poll(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Poll = %d, %v; want nothing new", n, err)
	}

	src.add("PlaybackChanged", "m1", "Movie", "u1")
	if n, _ := w.Poll(ctx); n != 1 {
		t.Errorf("Poll after new change forwarded %d, want 1", n)
	}
	if got := len(sink.all()); got != 3 {
		t.Errorf("sink received %d events, want 3", got)
	}

	st := w.Status()
	if st.Cursor != 4 || st.RowsConsumed != 4 || st.EventsForwarded != 3 || st.LastError != "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestPollResumesFromPersistedCursor(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 5; i++ {
		src.add("ItemUpdated", fmt.Sprintf("m%d", i), "Movie", "")
	}
	src.cursor = 3

	sink := &recordingSink{}
	w := New(src, sink, nil)
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	events := sink.all()
	if len(events) != 1 || !slices.Equal(events[0].ItemIDs, []string{"m3", "m4"}) {
		t.Errorf("expected only changes after the cursor, got %+v", events)
	}
}

func TestPollPagesLargeBacklog(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < batchSize*2+10; i++ {
		kind := "ItemAdded"
		if i%2 == 1 {
			kind = "ItemUpdated"
		}
		src.add(kind, fmt.Sprintf("m%d", i), "Movie", "")
	}

	sink := &recordingSink{}
	w := New(src, sink, nil)
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.cursor != int64(batchSize*2+10) {
		t.Errorf("cursor = %d, want every row consumed", src.cursor)
	}
}

func TestPollErrorKeepsCursor(t *testing.T) {
	src := &fakeSource{}
	src.add("ItemAdded", "m1", "Movie", "")
	src.failNext = errors.New("database is locked")

	sink := &recordingSink{}
	w := New(src, sink, nil)
	if _, err := w.Poll(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}
	if st := w.Status(); st.LastError == "" {
		t.Error("status should report the poll error")
	}

	if n, err := w.Poll(context.Background()); err != nil || n != 1 {
		t.Errorf("retry Poll = %d, %v; want the change delivered", n, err)
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	reloader := &countingReloader{}

	w := New(src, sink, reloader)
	w.SetPollInterval(5 * time.Millisecond)
	w.SetReloadInterval(5 * time.Millisecond)
	w.Start()

	src.add("ItemAdded", "m1", "Movie", "")

	deadline := time.Now().Add(2 * time.Second)
	for (len(sink.all()) == 0 || reloader.calls() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	if len(sink.all()) != 1 {
		t.Errorf("expected the change to be forwarded, got %d events", len(sink.all()))
	}
	if reloader.calls() == 0 {
		t.Error("expected at least one reload")
	}
}
