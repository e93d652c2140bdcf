package refresh

import (
	"fmt"
	"slices"

	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/metrics"
)

// batchState is the debouncer state. Events move it from Idle to
// Accumulating; the quiet timer moves it to Draining and back to Idle.
type batchState int

const (
	stateIdle batchState = iota
	stateAccumulating
	stateDraining
)

func (s batchState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateAccumulating:
		return "Accumulating"
	case stateDraining:
		return "Draining"
	default:
		return fmt.Sprintf("batchState(%d)", int(s))
	}
}

// Notify records a change event. Every event restarts the quiet window, so a
// burst of events is drained once. UserChanged events invalidate the user
// cache instead of triggering refreshes.
func (o *Orchestrator) Notify(ev library.ChangeEvent) {
	metrics.ChangeEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	if ev.Kind == library.UserChanged {
		o.users.Invalidate()
		o.refreshAffectFilters()
		return
	}

	o.batchMu.Lock()
	defer o.batchMu.Unlock()
	o.pending = append(o.pending, ev)
	o.state = stateAccumulating
	o.timer.Reset(o.cfg.Debounce)
}

// BatchState returns the debouncer state and the number of pending events.
func (o *Orchestrator) BatchState() (string, int) {
	o.batchMu.Lock()
	defer o.batchMu.Unlock()
	return o.state.String(), len(o.pending)
}

// drain collapses the pending batch into one request per affected list and
// submits them. Called when the quiet timer fires.
func (o *Orchestrator) drain() []Request {
	o.batchMu.Lock()
	if o.state != stateAccumulating || len(o.pending) == 0 {
		o.batchMu.Unlock()
		return nil
	}
	events := o.pending
	o.pending = nil
	o.state = stateDraining
	o.batchMu.Unlock()

	reqs := o.collapse(events)
	metrics.DebounceDrainsTotal.Inc()
	metrics.DebounceBatchSize.Observe(float64(len(events)))
	logging.Debug("Drained %d change events into %d list refreshes", len(events), len(reqs))

	for _, r := range reqs {
		o.submit(r, nil)
	}

	o.batchMu.Lock()
	if o.state == stateDraining {
		o.state = stateIdle
	}
	o.batchMu.Unlock()
	return reqs
}

// collapse maps events to deduplicated requests ordered by list id.
func (o *Orchestrator) collapse(events []library.ChangeEvent) []Request {
	byList := make(map[string]*Request)
	for _, ev := range events {
		for _, id := range o.GetAffectedLists(ev) {
			byList[id] = merge(byList[id], Request{ListID: id, Cause: CauseAuto, ItemIDs: ev.ItemIDs})
		}
	}

	ids := make([]string, 0, len(byList))
	for id := range byList {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	reqs := make([]Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, *byList[id])
	}
	return reqs
}
