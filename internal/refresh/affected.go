package refresh

import (
	"context"
	"slices"
	"time"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

// affectFilter is the cached pre-filter deciding whether a change event can
// affect a list. It errs on the side of refreshing.
type affectFilter struct {
	mode     smartlist.AutoRefreshMode
	enabled  bool
	kinds    map[mediatypes.Kind]bool // nil accepts every kind
	userData bool
	users    map[string]bool
}

func newAffectFilter(ctx context.Context, l *smartlist.SmartList, users *library.UserCache) affectFilter {
	f := affectFilter{
		mode:     l.AutoRefresh,
		enabled:  l.Enabled,
		userData: l.UsesUserData(),
	}

	if len(l.MediaTypes) > 0 {
		f.kinds = make(map[mediatypes.Kind]bool)
		for _, k := range l.MediaTypes {
			f.kinds[k] = true
		}
		// Episode rules can read their series' values.
		if uses(l, smartlist.FlagParentSeries) {
			f.kinds[mediatypes.KindSeries] = true
		}
		if l.IsCollection() && l.HasField(smartlist.FieldCollections) {
			f.kinds[mediatypes.KindBoxSet] = true
		}
	}

	if f.userData {
		f.users = make(map[string]bool)
		for _, ref := range l.ReferencedUsers() {
			f.users[ref] = true
			if users == nil {
				continue
			}
			if u, err := users.Resolve(ctx, ref); err == nil {
				f.users[u.ID] = true
			}
		}
	}
	return f
}

func uses(l *smartlist.SmartList, flag smartlist.Flag) bool {
	for _, set := range l.ExpressionSets {
		for _, e := range set.Expressions {
			if e.Flags()&flag != 0 {
				return true
			}
		}
	}
	return false
}

func (f affectFilter) affects(ev library.ChangeEvent) bool {
	if !f.enabled {
		return false
	}
	switch f.mode {
	case smartlist.RefreshOnLibraryChanges:
		if !ev.Kind.IsLibraryChange() {
			return false
		}
	case smartlist.RefreshOnAllChanges:
		if ev.Kind == library.UserChanged {
			return false
		}
	default:
		return false
	}

	if ev.Kind == library.PlaybackChanged {
		if !f.userData {
			return false
		}
		if ev.UserID != "" && !f.users[ev.UserID] {
			return false
		}
	}

	if f.kinds != nil && len(ev.Kinds) > 0 {
		if !slices.ContainsFunc(ev.Kinds, func(k mediatypes.Kind) bool { return f.kinds[k] }) {
			return false
		}
	}
	return true
}

// GetAffectedLists returns the ids of the lists a change event should
// refresh, sorted by id.
func (o *Orchestrator) GetAffectedLists(ev library.ChangeEvent) []string {
	o.listsMu.RLock()
	defer o.listsMu.RUnlock()

	var ids []string
	for _, id := range o.order {
		if o.filters[id].affects(ev) {
			ids = append(ids, id)
		}
	}
	return ids
}

// refreshAffectFilters rebuilds the filters after user names may have changed.
func (o *Orchestrator) refreshAffectFilters() {
	ctx, cancel := context.WithTimeout(o.ctx, 10*time.Second)
	defer cancel()

	o.listsMu.RLock()
	lists := make([]*smartlist.SmartList, 0, len(o.lists))
	for _, l := range o.lists {
		lists = append(lists, l)
	}
	o.listsMu.RUnlock()

	filters := make(map[string]affectFilter, len(lists))
	for _, l := range lists {
		filters[l.ID] = newAffectFilter(ctx, l, o.users)
	}

	o.listsMu.Lock()
	defer o.listsMu.Unlock()
	for id, f := range filters {
		if _, ok := o.lists[id]; ok {
			o.filters[id] = f
		}
	}
}
