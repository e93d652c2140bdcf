package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"smartlists/internal/clock"
	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/metrics"
	"smartlists/internal/rules"
	"smartlists/internal/schedule"
	"smartlists/internal/smartlist"
	"smartlists/internal/sorter"
	"smartlists/internal/workers"
)

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds item evaluation within one list; 0 auto-detects and 1
	// evaluates sequentially.
	Workers int
	// MaxConcurrentLists bounds how many lists refresh at once.
	MaxConcurrentLists int
	// Debounce is the quiet window after the last change event.
	Debounce time.Duration
	// Affixes decorate materialized collection names.
	Affixes smartlist.NameAffixes
	// Location is the time zone schedules are computed in.
	Location *time.Location
}

// Gate delays refreshes while the process is short of resources.
type Gate interface {
	Wait(ctx context.Context) error
}

// Options carries the collaborators of an Orchestrator. Gate is optional.
type Options struct {
	Store        Store
	Catalog      library.Catalog
	Users        *library.UserCache
	Materializer library.Materializer
	Clock        clock.Clock
	Sorter       *sorter.Sorter
	Gate         Gate
	Config       Config
}

// slot serializes refreshes of one list. At most one refresh runs and at
// most one request waits; later requests merge into the waiting one.
type slot struct {
	running bool
	pending *Request
	waiters []chan error
	cancel  context.CancelFunc
}

// Orchestrator turns change events, schedule fires and manual requests into
// bounded, per-list exclusive refreshes.
type Orchestrator struct {
	cfg       Config
	store     Store
	catalog   library.Catalog
	users     *library.UserCache
	mat       library.Materializer
	clock     clock.Clock
	engine    *rules.Engine
	sorter    *sorter.Sorter
	scheduler *schedule.Scheduler
	sem       *semaphore.Weighted
	gate      Gate
	workers   int

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	batchMu sync.Mutex
	state   batchState
	pending []library.ChangeEvent
	timer   clock.Timer

	listsMu sync.RWMutex
	lists   map[string]*smartlist.SmartList
	filters map[string]affectFilter
	order   []string

	slotsMu sync.Mutex
	slots   map[string]*slot

	statusMu sync.Mutex
	status   map[string]*ListStatus

	allRunning atomic.Bool
}

// New creates an orchestrator. Call Reload before Run so schedules and
// auto-refresh filters know the lists.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.MaxConcurrentLists <= 0 {
		cfg.MaxConcurrentLists = 1
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 5 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	srt := opts.Sorter
	if srt == nil {
		srt = sorter.New()
	}
	users := opts.Users
	if users == nil {
		users = library.NewUserCache(nil)
	}

	ctx, stop := context.WithCancel(context.Background())
	timer := clk.NewTimer(time.Hour)
	timer.Stop()

	o := &Orchestrator{
		cfg:     cfg,
		store:   opts.Store,
		catalog: opts.Catalog,
		users:   users,
		mat:     opts.Materializer,
		clock:   clk,
		engine:  rules.NewEngine(opts.Catalog, users, cfg.Affixes),
		sorter:  srt,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentLists)),
		gate:    opts.Gate,
		workers: workers.Resolve(cfg.Workers),
		ctx:     ctx,
		stop:    stop,
		timer:   timer,
		lists:   make(map[string]*smartlist.SmartList),
		filters: make(map[string]affectFilter),
		slots:   make(map[string]*slot),
		status:  make(map[string]*ListStatus),
	}
	o.scheduler = schedule.New(clk, cfg.Location, o.onScheduleFire)
	return o
}

// Workers returns the resolved per-list evaluation parallelism.
func (o *Orchestrator) Workers() int { return o.workers }

// Run drives the debounce timer and the scheduler until ctx is done, then
// waits for running refreshes to stop.
func (o *Orchestrator) Run(ctx context.Context) {
	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.scheduler.Run(schedCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			cancelSched()
			o.Close()
			return
		case <-o.timer.C():
			o.drain()
		}
	}
}

// Close cancels running refreshes and waits for them to return.
func (o *Orchestrator) Close() {
	o.slotsMu.Lock()
	o.stop()
	o.slotsMu.Unlock()
	o.batchMu.Lock()
	o.timer.Stop()
	o.batchMu.Unlock()
	o.wg.Wait()
}

// Reload re-reads the definitions, rebuilds the auto-refresh filters and the
// schedule, and cancels refreshes of lists that were disabled or deleted.
func (o *Orchestrator) Reload(ctx context.Context) error {
	lists, err := o.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading list definitions: %w", err)
	}

	byID := make(map[string]*smartlist.SmartList, len(lists))
	filters := make(map[string]affectFilter, len(lists))
	order := make([]string, 0, len(lists))
	enabled := 0
	for _, l := range lists {
		byID[l.ID] = l
		filters[l.ID] = newAffectFilter(ctx, l, o.users)
		order = append(order, l.ID)
		if l.Enabled {
			enabled++
		}
	}
	slices.Sort(order)

	o.listsMu.Lock()
	o.lists, o.filters, o.order = byID, filters, order
	o.listsMu.Unlock()

	o.scheduler.Sync(lists)

	o.slotsMu.Lock()
	for id, s := range o.slots {
		if l, ok := byID[id]; (!ok || !l.Enabled) && s.cancel != nil {
			logging.Info("List %s was disabled or removed during its refresh; cancelling", id)
			s.cancel()
		}
	}
	o.slotsMu.Unlock()

	metrics.DefinitionsLoaded.WithLabelValues("enabled").Set(float64(enabled))
	metrics.DefinitionsLoaded.WithLabelValues("disabled").Set(float64(len(lists) - enabled))
	logging.Debug("Loaded %d list definitions (%d enabled)", len(lists), enabled)
	return nil
}

// Lists returns the definitions known since the last Reload, sorted by id.
func (o *Orchestrator) Lists() []*smartlist.SmartList {
	o.listsMu.RLock()
	defer o.listsMu.RUnlock()
	out := make([]*smartlist.SmartList, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.lists[id])
	}
	return out
}

func (o *Orchestrator) onScheduleFire(f schedule.Fire) {
	o.listsMu.RLock()
	l, ok := o.lists[f.ListID]
	o.listsMu.RUnlock()
	if !ok || !l.Enabled {
		return
	}
	o.submit(Request{ListID: f.ListID, Cause: CauseScheduled}, nil)
}

// TriggerRefresh requests a refresh of one list, or of every enabled list
// when target is AllLists. It returns once the request is accepted. A second
// refresh of all lists while one is running fails with ErrRefreshInProgress.
func (o *Orchestrator) TriggerRefresh(ctx context.Context, target string) error {
	if target == AllLists {
		return o.refreshAll(ctx)
	}
	if _, err := o.lookupEnabled(ctx, target); err != nil {
		return err
	}
	o.submit(Request{ListID: target, Cause: CauseManual}, nil)
	return nil
}

// RefreshNow refreshes one list and waits for the result. A refresh already
// running for the list finishes first; a waiting one is merged with this.
func (o *Orchestrator) RefreshNow(ctx context.Context, id string) error {
	if _, err := o.lookupEnabled(ctx, id); err != nil {
		return err
	}
	done := make(chan error, 1)
	o.submit(Request{ListID: id, Cause: CauseManual}, done)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) lookupEnabled(ctx context.Context, id string) (*smartlist.SmartList, error) {
	l, ok, err := o.store.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, id)
	}
	if !l.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrListDisabled, id)
	}
	return l, nil
}

func (o *Orchestrator) refreshAll(ctx context.Context) error {
	if !o.allRunning.CompareAndSwap(false, true) {
		metrics.RefreshConflictsTotal.Inc()
		return ErrRefreshInProgress
	}

	lists, err := o.store.List(ctx)
	if err != nil {
		o.allRunning.Store(false)
		return fmt.Errorf("loading list definitions: %w", err)
	}

	var dones []chan error
	for _, l := range lists {
		if !l.Enabled {
			continue
		}
		done := make(chan error, 1)
		dones = append(dones, done)
		o.submit(Request{ListID: l.ID, Cause: CauseManual}, done)
	}

	// Workers answer every waiter, including on shutdown, so this returns.
	go func() {
		defer o.allRunning.Store(false)

		start := o.clock.Now()
		failed := 0
		for _, done := range dones {
			if err := <-done; err != nil {
				failed++
			}
		}
		logging.Info("Refresh of all lists finished: %d lists, %d failed, took %v",
			len(dones), failed, o.clock.Now().Sub(start))
	}()
	return nil
}

// submit queues req for its list. If the list is idle a worker starts;
// otherwise the request merges into the list's waiting request.
func (o *Orchestrator) submit(req Request, done chan error) {
	o.slotsMu.Lock()
	if err := o.ctx.Err(); err != nil {
		o.slotsMu.Unlock()
		if done != nil {
			done <- err
		}
		return
	}
	s := o.slots[req.ListID]
	if s == nil {
		s = &slot{}
		o.slots[req.ListID] = s
	}
	if s.pending != nil {
		metrics.RefreshCoalescedTotal.Inc()
	}
	s.pending = merge(s.pending, req)
	if done != nil {
		s.waiters = append(s.waiters, done)
	}
	if s.running {
		o.slotsMu.Unlock()
		return
	}
	s.running = true
	o.wg.Add(1)
	o.slotsMu.Unlock()

	go o.worker(req.ListID, s)
}

// worker runs the list's requests one at a time until none is waiting.
func (o *Orchestrator) worker(id string, s *slot) {
	defer o.wg.Done()

	for {
		o.slotsMu.Lock()
		req, waiters := s.pending, s.waiters
		s.pending, s.waiters = nil, nil
		if req == nil || o.ctx.Err() != nil {
			s.running = false
			o.slotsMu.Unlock()
			for _, w := range waiters {
				w <- o.ctx.Err()
			}
			return
		}
		ctx, cancel := context.WithCancel(o.ctx)
		s.cancel = cancel
		o.slotsMu.Unlock()

		err := o.refresh(ctx, *req)
		cancel()

		o.slotsMu.Lock()
		s.cancel = nil
		o.slotsMu.Unlock()

		for _, w := range waiters {
			w <- err
		}
	}
}

// refresh evaluates one list for every owner and writes the results back.
// Nothing is written when the list became disabled or deleted meanwhile.
func (o *Orchestrator) refresh(ctx context.Context, req Request) (err error) {
	runID := uuid.NewString()
	log := logging.L().With(zap.String("list", req.ListID), zap.String("cause", string(req.Cause)), zap.String("run", runID))
	start := o.clock.Now()

	metrics.RefreshesInFlight.Inc()
	defer metrics.RefreshesInFlight.Dec()

	o.updateStatus(req.ListID, func(st *ListStatus) {
		st.State = StateRefreshing
		st.LastCause = req.Cause
		st.LastRunID = runID
		st.LastStarted = start
	})

	var (
		count    int
		warnings []string
	)
	defer func() {
		o.finish(req, start, count, warnings, err)
		switch {
		case err == nil:
			log.Info("list refreshed", zap.Int("items", count), zap.Duration("took", o.clock.Now().Sub(start)))
		case errors.Is(err, ErrDiscarded):
			log.Info("list refresh discarded", zap.Error(err))
		default:
			log.Warn("list refresh failed", zap.Error(err))
		}
	}()

	if err = o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrDiscarded, err)
	}
	defer o.sem.Release(1)

	if o.gate != nil {
		if err = o.gate.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrDiscarded, err)
		}
	}

	list, ok, err := o.store.Lookup(ctx, req.ListID)
	if err != nil {
		return fmt.Errorf("loading definition: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrDiscarded, ErrListNotFound)
	}
	if !list.Enabled {
		return fmt.Errorf("%w: %w", ErrDiscarded, ErrListDisabled)
	}

	run, err := o.prepare(ctx, list)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDiscarded, ctx.Err())
		}
		return fmt.Errorf("preparing evaluation: %w", err)
	}
	defer func() { warnings = run.warningList() }()

	var results []library.Result
	for _, owner := range list.Owners() {
		ids, err := o.evaluate(ctx, run, owner)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrDiscarded, ctx.Err())
			}
			return fmt.Errorf("evaluating for %s: %w", owner, err)
		}
		results = append(results, library.Result{
			ListID:  list.ID,
			Kind:    list.Kind,
			OwnerID: owner,
			Name:    o.displayName(list),
			ItemIDs: ids,
		})
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrDiscarded, ctx.Err())
	}
	latest, ok, err := o.store.Lookup(ctx, req.ListID)
	if err != nil {
		return fmt.Errorf("reloading definition: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrDiscarded, ErrListNotFound)
	}
	if !latest.Enabled {
		return fmt.Errorf("%w: %w", ErrDiscarded, ErrListDisabled)
	}

	caps := o.mat.Capabilities()
	for _, r := range results {
		if err := o.mat.Materialize(ctx, r); err != nil {
			return fmt.Errorf("materializing for %s: %w", r.OwnerID, err)
		}
		if caps.RefreshMetadata {
			if err := o.mat.RefreshMetadata(ctx, r); err != nil {
				log.Warn("metadata refresh failed", zap.String("owner", r.OwnerID), zap.Error(err))
			}
		}
	}
	if len(results) > 0 {
		count = len(results[0].ItemIDs)
	}
	return nil
}

func (o *Orchestrator) displayName(l *smartlist.SmartList) string {
	if l.IsCollection() {
		return o.cfg.Affixes.DisplayName(l.Name)
	}
	return l.Name
}

func (o *Orchestrator) finish(req Request, start time.Time, count int, warnings []string, err error) {
	end := o.clock.Now()
	status := "success"
	switch {
	case errors.Is(err, ErrDiscarded):
		status = "discarded"
	case err != nil:
		status = "error"
	}
	metrics.RefreshRunsTotal.WithLabelValues(string(req.Cause), status).Inc()
	metrics.RefreshDuration.WithLabelValues(string(req.Cause)).Observe(end.Sub(start).Seconds())

	o.updateStatus(req.ListID, func(st *ListStatus) {
		st.State = StateIdle
		st.LastFinished = end
		st.LastDuration = end.Sub(start)
		st.Discarded = status == "discarded"
		st.Warnings = warnings
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
		if status == "success" {
			st.ItemCount = count
		}
	})
}

// evalRun is the state shared by the owners of one list refresh.
type evalRun struct {
	list  *smartlist.SmartList
	prog  *rules.Program
	items []library.Item
	warn  *rules.Warnings
}

func (r *evalRun) warningList() []string {
	warnings := r.warn.List()
	for _, d := range r.prog.Disabled() {
		warnings = append(warnings, "disabled "+d.String())
	}
	return warnings
}

func (o *Orchestrator) prepare(ctx context.Context, list *smartlist.SmartList) (*evalRun, error) {
	prog, err := o.engine.Compile(ctx, list)
	if err != nil {
		return nil, err
	}
	items, err := o.catalog.Items(ctx, list.MediaTypes)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	return &evalRun{list: list, prog: prog, items: items, warn: rules.NewWarnings(list.ID)}, nil
}

// Evaluate computes a list's ordered item ids for its first owner without
// writing anything back.
func (o *Orchestrator) Evaluate(ctx context.Context, id string) ([]string, error) {
	l, ok, err := o.store.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, id)
	}
	run, err := o.prepare(ctx, l)
	if err != nil {
		return nil, err
	}
	return o.evaluate(ctx, run, l.Owners()[0])
}

type partition struct{ start, end int }

// partitions splits n items into contiguous ranges for the worker pool.
func partitions(n, workers int) []partition {
	if n == 0 {
		return nil
	}
	count := 1
	if workers > 1 {
		count = workers * 4
	}
	size := (n + count - 1) / count
	if size < 64 {
		size = 64
	}
	var parts []partition
	for start := 0; start < n; start += size {
		parts = append(parts, partition{start: start, end: min(start+size, n)})
	}
	return parts
}

// evaluate matches and orders the run's candidates for one owner. Catalog
// items are shared read-only between owners.
func (o *Orchestrator) evaluate(ctx context.Context, run *evalRun, owner string) ([]string, error) {
	list, prog, items := run.list, run.prog, run.items
	ec := o.engine.NewContextWithWarnings(ctx, owner, o.clock.Now(), run.warn)

	// Each partition writes only its own indexes, so the merged result is
	// in catalog order whatever order workers finish in.
	matched := make([]bool, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, part := range partitions(len(items), o.workers) {
		g.Go(func() error {
			for i := part.start; i < part.end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				matched[i] = prog.Matches(ec, &items[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selected := make([]*library.Item, 0)
	for i := range items {
		if matched[i] {
			selected = append(selected, &items[i])
		}
	}
	metrics.ItemsEvaluatedTotal.Add(float64(len(items)))
	metrics.ItemsMatchedTotal.Add(float64(len(selected)))

	ordered := o.sorter.Order(selected, list.SortKeys(), sortKeys{ec: ec, prog: prog})
	limited := sorter.Limit(ordered, list.MaxItems, list.MaxPlayTime.D())

	ids := make([]string, len(limited))
	for i, it := range limited {
		ids[i] = it.ID
	}
	return ids, nil
}

// sortKeys feeds owner playback state and similarity scores to the sorter.
type sortKeys struct {
	ec   *rules.EvalContext
	prog *rules.Program
}

func (k sortKeys) ItemData(itemID string) library.UserData { return k.ec.ItemData(itemID) }
func (k sortKeys) Similarity(it *library.Item) float64    { return k.prog.Similarity(it) }

func (o *Orchestrator) updateStatus(id string, fn func(*ListStatus)) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	st := o.status[id]
	if st == nil {
		st = &ListStatus{ListID: id, State: StateIdle}
		o.status[id] = st
	}
	fn(st)
}

// Status returns the runtime status of one list.
func (o *Orchestrator) Status(id string) ListStatus {
	o.statusMu.Lock()
	st := ListStatus{ListID: id, State: StateIdle}
	if cur := o.status[id]; cur != nil {
		st = *cur
		st.Warnings = slices.Clone(cur.Warnings)
	}
	o.statusMu.Unlock()

	o.slotsMu.Lock()
	if s := o.slots[id]; s != nil {
		st.Pending = s.pending != nil
	}
	o.slotsMu.Unlock()

	if next, ok := o.scheduler.Next(id); ok {
		st.NextScheduled = next
	}
	return st
}

// Statuses returns the status of every known list, sorted by id.
func (o *Orchestrator) Statuses() []ListStatus {
	o.listsMu.RLock()
	ids := slices.Clone(o.order)
	o.listsMu.RUnlock()

	out := make([]ListStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.Status(id))
	}
	return out
}
