package smartlist

import (
	"fmt"
	"strings"
)

// matchName returns the candidate equal to s ignoring case.
func matchName[T ~string](kind, s string, candidates ...T) (T, error) {
	s = strings.TrimSpace(s)
	for _, c := range candidates {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ListKind) UnmarshalText(text []byte) error {
	v, err := matchName("list kind", string(text), KindPlaylist, KindCollection)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AutoRefreshMode) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*m = RefreshNever
		return nil
	}
	v, err := matchName("auto refresh mode", string(text), RefreshNever, RefreshOnLibraryChanges, RefreshOnAllChanges)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SortField) UnmarshalText(text []byte) error {
	v, err := matchName("sort field", string(text), allSortFields...)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Asc and Desc are accepted.
func (o *SortOrder) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "asc", "ascending":
		*o = Ascending
	case "desc", "descending":
		*o = Descending
	default:
		return fmt.Errorf("unknown sort order %q", text)
	}
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TriggerKind) UnmarshalText(text []byte) error {
	v, err := matchName("trigger", string(text), TriggerDaily, TriggerWeekly, TriggerMonthly, TriggerYearly, TriggerInterval)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
