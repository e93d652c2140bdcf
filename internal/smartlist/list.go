package smartlist

import (
	"strings"

	"golang.org/x/text/cases"

	"smartlists/internal/mediatypes"
)

// IsPlaylist reports whether the list is a playlist.
func (l *SmartList) IsPlaylist() bool { return l.Kind == KindPlaylist }

// IsCollection reports whether the list is a collection.
func (l *SmartList) IsCollection() bool { return l.Kind == KindCollection }

// Owners returns the users the list is evaluated for. Playlists with several
// owners are evaluated once per owner; everything else uses the reference user.
func (l *SmartList) Owners() []string {
	if l.IsPlaylist() && len(l.UserIDs) > 0 {
		seen := make(map[string]bool, len(l.UserIDs))
		owners := make([]string, 0, len(l.UserIDs))
		for _, id := range l.UserIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			owners = append(owners, id)
		}
		if len(owners) > 0 {
			return owners
		}
	}
	return []string{l.UserID}
}

// HasField reports whether any expression tests field f.
func (l *SmartList) HasField(f Field) bool {
	for _, set := range l.ExpressionSets {
		for _, e := range set.Expressions {
			if e.Field == f {
				return true
			}
		}
	}
	return false
}

// UsesUserData reports whether any expression depends on per-user state.
func (l *SmartList) UsesUserData() bool {
	for _, set := range l.ExpressionSets {
		for _, e := range set.Expressions {
			if e.Field.UserScoped() {
				return true
			}
		}
	}
	for _, k := range l.Order {
		if k.Field == SortPlayCount || k.Field == SortLastPlayed {
			return true
		}
	}
	return false
}

// ReferencedUsers returns every user whose state the list reads: owners plus
// explicit per-expression overrides.
func (l *SmartList) ReferencedUsers() []string {
	seen := make(map[string]bool)
	var users []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			users = append(users, id)
		}
	}
	for _, id := range l.Owners() {
		add(id)
	}
	for _, set := range l.ExpressionSets {
		for _, e := range set.Expressions {
			add(e.UserID)
		}
	}
	return users
}

// AcceptsKind reports whether items of kind k are candidates for the list.
// An empty media type filter accepts every kind.
func (l *SmartList) AcceptsKind(k mediatypes.Kind) bool {
	if len(l.MediaTypes) == 0 {
		return true
	}
	for _, mt := range l.MediaTypes {
		if mt == k {
			return true
		}
	}
	return false
}

// SortKeys returns the effective sort chain. Collections never sort.
func (l *SmartList) SortKeys() []SortKey {
	if l.IsCollection() {
		return []SortKey{{Field: SortNoOrder}}
	}
	return l.Order
}

// NameAffixes is the configured prefix and suffix added to materialized names.
type NameAffixes struct {
	Prefix string
	Suffix string
}

// DisplayName returns the name the host shows for the list.
func (a NameAffixes) DisplayName(name string) string {
	return a.Prefix + name + a.Suffix
}

// Normalize strips the affixes, surrounding whitespace and case from name so
// names can be compared regardless of how they were decorated.
func (a NameAffixes) Normalize(name string) string {
	n := strings.TrimSpace(name)
	if p := strings.TrimSpace(a.Prefix); p != "" && len(n) >= len(p) && strings.EqualFold(n[:len(p)], p) {
		n = n[len(p):]
	}
	if s := strings.TrimSpace(a.Suffix); s != "" && len(n) >= len(s) && strings.EqualFold(n[len(n)-len(s):], s) {
		n = n[:len(n)-len(s)]
	}
	return cases.Fold().String(strings.TrimSpace(n))
}
