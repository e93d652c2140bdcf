package schedule

import (
	"context"
	"slices"
	"sync"
	"time"

	"smartlists/internal/clock"
	"smartlists/internal/logging"
	"smartlists/internal/metrics"
	"smartlists/internal/smartlist"
)

// Fire is emitted when a schedule elapses.
type Fire struct {
	ListID   string
	Schedule smartlist.Schedule
	At       time.Time
}

type entry struct {
	listID   string
	schedule smartlist.Schedule
	next     time.Time
}

func (e entry) key() string {
	return e.listID + "\x00" + e.schedule.String()
}

// Scheduler tracks the next fire time of every schedule of every enabled
// list and emits a Fire when one elapses. It never evaluates lists itself.
type Scheduler struct {
	clock clock.Clock
	loc   *time.Location
	emit  func(Fire)

	mu      sync.Mutex
	entries []entry
	timer   clock.Timer
}

// New creates a scheduler computing calendar triggers in loc (time.Local when
// nil). emit is called from the Run goroutine and must not block for long.
func New(clk clock.Clock, loc *time.Location, emit func(Fire)) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	t := clk.NewTimer(time.Hour)
	t.Stop()
	return &Scheduler{clock: clk, loc: loc, emit: emit, timer: t}
}

// Sync replaces the registered schedules with those of the enabled lists.
// Entries that did not change keep their pending fire time.
func (s *Scheduler) Sync(lists []*smartlist.SmartList) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]time.Time, len(s.entries))
	for _, e := range s.entries {
		existing[e.key()] = e.next
	}

	now := s.clock.Now().In(s.loc)
	var entries []entry
	for _, l := range lists {
		if !l.Enabled {
			continue
		}
		for _, sch := range l.Schedules {
			e := entry{listID: l.ID, schedule: sch}
			if next, ok := existing[e.key()]; ok {
				e.next = next
			} else {
				e.next = NextFireTime(sch, now)
			}
			entries = append(entries, e)
		}
	}
	s.entries = entries
	metrics.ScheduledListsTotal.Set(float64(len(entries)))
	s.armLocked()
}

// Next returns the earliest pending fire time of a list.
func (s *Scheduler) Next(listID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best time.Time
	for _, e := range s.entries {
		if e.listID == listID && (best.IsZero() || e.next.Before(best)) {
			best = e.next
		}
	}
	return best, !best.IsZero()
}

// armLocked points the timer at the earliest entry. Callers hold s.mu.
func (s *Scheduler) armLocked() {
	if len(s.entries) == 0 {
		s.timer.Stop()
		return
	}
	earliest := s.entries[0].next
	for _, e := range s.entries[1:] {
		if e.next.Before(earliest) {
			earliest = e.next
		}
	}
	d := earliest.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timer.Reset(d)
}

// Run fires due schedules until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.timer.Stop()
			s.mu.Unlock()
			return
		case <-s.timer.C():
			for _, f := range s.collectDue() {
				metrics.ScheduleFiresTotal.WithLabelValues(string(f.Schedule.Trigger)).Inc()
				logging.Debug("Schedule %s fired for list %s", f.Schedule, f.ListID)
				s.emit(f)
			}
		}
	}
}

// collectDue advances every elapsed entry and returns one Fire per list.
func (s *Scheduler) collectDue() []Fire {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var fires []Fire
	for i := range s.entries {
		e := &s.entries[i]
		if e.next.After(now) {
			continue
		}
		if !slices.ContainsFunc(fires, func(f Fire) bool { return f.ListID == e.listID }) {
			fires = append(fires, Fire{ListID: e.listID, Schedule: e.schedule, At: e.next})
		}
		e.next = NextFireTime(e.schedule, now.In(s.loc))
	}
	s.armLocked()
	return fires
}
