package refresh

import (
	"context"
	"errors"
	"slices"
	"time"

	"smartlists/internal/smartlist"
)

// AllLists is the TriggerRefresh target that refreshes every enabled list.
const AllLists = smartlist.ReservedID

var (
	// ErrRefreshInProgress is returned when a refresh of all lists is
	// requested while one is still running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrListNotFound is returned for unknown list ids.
	ErrListNotFound = errors.New("list not found")
	// ErrListDisabled is returned when refreshing a disabled list.
	ErrListDisabled = errors.New("list is disabled")
	// ErrDiscarded marks a refresh whose result was thrown away because the
	// list was disabled, deleted or cancelled while it ran.
	ErrDiscarded = errors.New("refresh result discarded")
)

// Store supplies list definitions. Lookup reports ok=false for unknown ids.
type Store interface {
	List(ctx context.Context) ([]*smartlist.SmartList, error)
	Lookup(ctx context.Context, id string) (*smartlist.SmartList, bool, error)
}

// Cause records why a refresh was requested.
type Cause string

const (
	CauseManual    Cause = "manual"
	CauseScheduled Cause = "scheduled"
	CauseAuto      Cause = "auto"
)

// priority orders causes when requests are merged; manual wins.
func (c Cause) priority() int {
	switch c {
	case CauseManual:
		return 2
	case CauseScheduled:
		return 1
	default:
		return 0
	}
}

// Request asks for one list to be recomputed. It is never persisted.
type Request struct {
	ListID string `json:"listId"`
	Cause  Cause  `json:"cause"`
	// ItemIDs are the changed items that triggered an automatic refresh.
	ItemIDs []string `json:"itemIds,omitempty"`
}

// merge folds req into pending. The higher priority cause wins and item
// hints are unioned.
func merge(pending *Request, req Request) *Request {
	if pending == nil {
		r := req
		r.ItemIDs = slices.Clone(req.ItemIDs)
		return &r
	}
	out := *pending
	if req.Cause.priority() > out.Cause.priority() {
		out.Cause = req.Cause
	}
	out.ItemIDs = unionIDs(out.ItemIDs, req.ItemIDs)
	return &out
}

func unionIDs(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// State is the refresh state of one list.
type State string

const (
	StateIdle       State = "Idle"
	StateRefreshing State = "Refreshing"
)

// ListStatus is the runtime status of one list.
type ListStatus struct {
	ListID        string        `json:"listId"`
	State         State         `json:"state"`
	Pending       bool          `json:"pending"`
	LastCause     Cause         `json:"lastCause,omitempty"`
	LastRunID     string        `json:"lastRunId,omitempty"`
	LastStarted   time.Time     `json:"lastStarted,omitempty"`
	LastFinished  time.Time     `json:"lastFinished,omitempty"`
	LastDuration  time.Duration `json:"lastDurationNs,omitempty"`
	ItemCount     int           `json:"itemCount"`
	LastError     string        `json:"lastError,omitempty"`
	Discarded     bool          `json:"discarded"`
	Warnings      []string      `json:"warnings,omitempty"`
	NextScheduled time.Time     `json:"nextScheduled,omitempty"`
}
