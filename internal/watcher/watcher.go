package watcher

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"smartlists/internal/database"
	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/mediatypes"
	"smartlists/internal/metrics"
)

const (
	// Number of change rows read per query
	batchSize = 500

	// Default polling interval for the change log
	defaultPollInterval = 10 * time.Second

	// Default interval between definition reloads
	defaultReloadInterval = time.Minute
)

// ChangeSource is the host change log.
type ChangeSource interface {
	Changes(ctx context.Context, after int64, limit int) ([]database.Change, error)
	PruneChanges(ctx context.Context, upTo int64) (int64, error)
	GetChangeCursor(ctx context.Context) (int64, error)
	SetChangeCursor(ctx context.Context, seq int64) error
}

// Sink receives change events.
type Sink interface {
	Notify(ev library.ChangeEvent)
}

// Reloader re-reads list definitions.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher polls the change log and reloads definitions in the background.
type Watcher struct {
	source         ChangeSource
	sink           Sink
	reloader       Reloader
	pollInterval   time.Duration
	reloadInterval time.Duration
	stopChan       chan struct{}
	wg             sync.WaitGroup

	pollMu    sync.Mutex
	cursor    int64
	loaded    bool
	lastPoll  time.Time
	lastError error
	startTime time.Time

	eventsForwarded atomic.Int64
	rowsConsumed    atomic.Int64
}

// Status reports the watcher's progress.
type Status struct {
	Cursor          int64     `json:"cursor"`
	LastPoll        time.Time `json:"lastPoll,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
	EventsForwarded int64     `json:"eventsForwarded"`
	RowsConsumed    int64     `json:"rowsConsumed"`
	Uptime          string    `json:"uptime"`
}

// New creates a Watcher. reloader may be nil.
func New(source ChangeSource, sink Sink, reloader Reloader) *Watcher {
	return &Watcher{
		source:         source,
		sink:           sink,
		reloader:       reloader,
		pollInterval:   defaultPollInterval,
		reloadInterval: defaultReloadInterval,
		stopChan:       make(chan struct{}),
		startTime:      time.Now(),
	}
}

// SetPollInterval sets the change log polling interval.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// SetReloadInterval sets the definition reload interval.
func (w *Watcher) SetReloadInterval(interval time.Duration) {
	if interval > 0 {
		w.reloadInterval = interval
	}
}

// Start launches the polling and reload loops.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.pollForChanges()

	if w.reloader != nil {
		w.wg.Add(1)
		go w.periodicReload()
	}
}

// Stop stops both loops and waits for them.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Watcher) pollForChanges() {
	defer w.wg.Done()
	logging.Info("Starting change log polling (interval: %v)", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.pollInterval)
			if _, err := w.Poll(ctx); err != nil {
				logging.Error("Error polling change log: %v", err)
			}
			cancel()
		case <-w.stopChan:
			logging.Info("Change log polling stopped")
			return
		}
	}
}

func (w *Watcher) periodicReload() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic definition reload triggered")
			ctx, cancel := context.WithTimeout(context.Background(), w.reloadInterval)
			if err := w.reloader.Reload(ctx); err != nil {
				logging.Error("Definition reload failed: %v", err)
			}
			cancel()
		case <-w.stopChan:
			return
		}
	}
}

// Poll consumes every change logged since the last poll and returns the
// number of events forwarded. Concurrent calls are serialized.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.WatcherPollDuration.Observe(time.Since(start).Seconds())
		metrics.WatcherLastPollTimestamp.SetToCurrentTime()
	}()

	forwarded, err := w.pollLocked(ctx)
	w.lastPoll = start
	w.lastError = err
	return forwarded, err
}

func (w *Watcher) pollLocked(ctx context.Context) (int, error) {
	if !w.loaded {
		cursor, err := w.source.GetChangeCursor(ctx)
		if err != nil {
			return 0, err
		}
		w.cursor, w.loaded = cursor, true
	}

	forwarded := 0
	for {
		rows, err := w.source.Changes(ctx, w.cursor, batchSize)
		if err != nil {
			return forwarded, err
		}
		if len(rows) == 0 {
			return forwarded, nil
		}

		events := Group(rows)
		for _, ev := range events {
			w.sink.Notify(ev)
		}
		forwarded += len(events)
		w.eventsForwarded.Add(int64(len(events)))

		last := rows[len(rows)-1].Seq
		if err := w.source.SetChangeCursor(ctx, last); err != nil {
			return forwarded, err
		}
		w.cursor = last
		w.rowsConsumed.Add(int64(len(rows)))

		if _, err := w.source.PruneChanges(ctx, last); err != nil {
			logging.Warn("Failed to prune change log up to %d: %v", last, err)
		}
		logging.Debug("Consumed %d change rows up to %d", len(rows), last)

		if len(rows) < batchSize {
			return forwarded, nil
		}
	}
}

// Group folds consecutive change rows of the same kind (and user, for
// playback and user changes) into one event.
func Group(rows []database.Change) []library.ChangeEvent {
	var events []library.ChangeEvent
	for _, row := range rows {
		kind, err := library.ParseChangeKind(row.Kind)
		if err != nil {
			logging.Warn("Skipping change %d: %v", row.Seq, err)
			continue
		}

		n := len(events)
		if n == 0 || events[n-1].Kind != kind || events[n-1].UserID != row.UserID {
			events = append(events, library.ChangeEvent{Kind: kind, UserID: row.UserID})
			n++
		}
		ev := &events[n-1]
		if row.ItemID != "" && !slices.Contains(ev.ItemIDs, row.ItemID) {
			ev.ItemIDs = append(ev.ItemIDs, row.ItemID)
		}
		if row.ItemKind != "" {
			if k, err := mediatypes.ParseKind(row.ItemKind); err == nil && !slices.Contains(ev.Kinds, k) {
				ev.Kinds = append(ev.Kinds, k)
			}
		}
		if row.At.After(ev.At) {
			ev.At = row.At
		}
	}
	return events
}

// Status returns the watcher's progress.
func (w *Watcher) Status() Status {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	st := Status{
		Cursor:          w.cursor,
		LastPoll:        w.lastPoll,
		EventsForwarded: w.eventsForwarded.Load(),
		RowsConsumed:    w.rowsConsumed.Load(),
		Uptime:          time.Since(w.startTime).String(),
	}
	if w.lastError != nil {
		st.LastError = w.lastError.Error()
	}
	return st
}
