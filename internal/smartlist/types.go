package smartlist

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"smartlists/internal/mediatypes"
)

// ListKind distinguishes playlists from collections.
type ListKind string

const (
	// KindPlaylist is an ordered, per-owner list.
	KindPlaylist ListKind = "Playlist"
	// KindCollection is an unordered set evaluated for one reference user.
	KindCollection ListKind = "Collection"
)

// AutoRefreshMode governs which change events trigger recomputation.
type AutoRefreshMode string

const (
	// RefreshNever only refreshes manually or on schedule.
	RefreshNever AutoRefreshMode = "Never"
	// RefreshOnLibraryChanges reacts to items being added or removed.
	RefreshOnLibraryChanges AutoRefreshMode = "OnLibraryChanges"
	// RefreshOnAllChanges reacts to every change, including metadata and playback.
	RefreshOnAllChanges AutoRefreshMode = "OnAllChanges"
)

// SmartList is a rule-defined playlist or collection definition. The core
// treats it as read-only input.
type SmartList struct {
	ID             string            `yaml:"id" json:"id"`
	Name           string            `yaml:"name" json:"name"`
	Kind           ListKind          `yaml:"kind" json:"kind"`
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	MediaTypes     []mediatypes.Kind `yaml:"mediaTypes,omitempty" json:"mediaTypes,omitempty"`
	ExpressionSets []ExpressionSet   `yaml:"expressionSets" json:"expressionSets"`
	Order          []SortKey         `yaml:"order,omitempty" json:"order,omitempty"`
	MaxItems       int               `yaml:"maxItems,omitempty" json:"maxItems,omitempty"`
	MaxPlayTime    Duration          `yaml:"maxPlayTime,omitempty" json:"maxPlayTime,omitempty"`
	AutoRefresh    AutoRefreshMode   `yaml:"autoRefresh,omitempty" json:"autoRefresh,omitempty"`
	Schedules      []Schedule        `yaml:"schedules,omitempty" json:"schedules,omitempty"`
	UserID         string            `yaml:"userId" json:"userId"`
	UserIDs        []string          `yaml:"userIds,omitempty" json:"userIds,omitempty"`
}

// New returns a SmartList with the defaults applied before decoding a
// definition on top of it.
func New() *SmartList {
	return &SmartList{
		Kind:        KindPlaylist,
		Enabled:     true,
		AutoRefresh: RefreshNever,
	}
}

// ExpressionSet is an AND-group of expressions.
type ExpressionSet struct {
	Expressions []Expression `yaml:"expressions" json:"expressions"`
}

// Expression tests one field of an item against a target value.
type Expression struct {
	Field    Field    `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	// Value is string encoded; IsIn/IsNotIn take a semicolon separated list.
	Value string `yaml:"value" json:"value"`
	// UserID overrides the list user for user-scoped fields.
	UserID                  string `yaml:"userId,omitempty" json:"userId,omitempty"`
	IncludeParentSeries     bool   `yaml:"includeParentSeries,omitempty" json:"includeParentSeries,omitempty"`
	IncludeUnwatchedSeries  bool   `yaml:"includeUnwatchedSeries,omitempty" json:"includeUnwatchedSeries,omitempty"`
	IncludeCollectionItself bool   `yaml:"includeCollectionItself,omitempty" json:"includeCollectionItself,omitempty"`
}

// Flags returns the auxiliary flags set on the expression.
func (e Expression) Flags() Flag {
	var f Flag
	if e.IncludeParentSeries {
		f |= FlagParentSeries
	}
	if e.IncludeUnwatchedSeries {
		f |= FlagUnwatchedSeries
	}
	if e.IncludeCollectionItself {
		f |= FlagCollectionItself
	}
	return f
}

func (e Expression) String() string {
	return fmt.Sprintf("%s %s %q", e.Field, e.Operator, e.Value)
}

// SortField names a sort key.
type SortField string

const (
	SortName               SortField = "Name"
	SortNameIgnoreArticles SortField = "NameIgnoreArticles"
	SortSeriesName         SortField = "SeriesName"
	SortProductionYear     SortField = "ProductionYear"
	SortCommunityRating    SortField = "CommunityRating"
	SortCriticRating       SortField = "CriticRating"
	SortDateCreated        SortField = "DateCreated"
	SortReleaseDate        SortField = "ReleaseDate"
	SortRuntime            SortField = "Runtime"
	SortPlayCount          SortField = "PlayCount"
	SortLastPlayed         SortField = "LastPlayed"
	SortTrackNumber        SortField = "TrackNumber"
	SortEpisodeNumber      SortField = "EpisodeNumber"
	SortSimilarity         SortField = "Similarity"
	SortRandom             SortField = "Random"
	SortNoOrder            SortField = "NoOrder"
)

var allSortFields = []SortField{
	SortName, SortNameIgnoreArticles, SortSeriesName, SortProductionYear,
	SortCommunityRating, SortCriticRating, SortDateCreated, SortReleaseDate,
	SortRuntime, SortPlayCount, SortLastPlayed, SortTrackNumber,
	SortEpisodeNumber, SortSimilarity, SortRandom, SortNoOrder,
}

// IsValid reports whether s is a known sort field.
func (s SortField) IsValid() bool {
	for _, f := range allSortFields {
		if f == s {
			return true
		}
	}
	return false
}

// SortOrder is the direction of a sort key.
type SortOrder string

const (
	Ascending  SortOrder = "Ascending"
	Descending SortOrder = "Descending"
)

// SortKey is one link in a sort chain.
type SortKey struct {
	Field SortField `yaml:"field" json:"field"`
	Order SortOrder `yaml:"order,omitempty" json:"order,omitempty"`
}

// Descending reports whether the key sorts in descending order.
func (k SortKey) Descending() bool {
	return k.Order == Descending
}

// TriggerKind selects how a schedule recurs.
type TriggerKind string

const (
	TriggerDaily    TriggerKind = "Daily"
	TriggerWeekly   TriggerKind = "Weekly"
	TriggerMonthly  TriggerKind = "Monthly"
	TriggerYearly   TriggerKind = "Yearly"
	TriggerInterval TriggerKind = "Interval"
)

// Schedule is a recurring refresh trigger. Only the parameters relevant to
// Trigger are read.
type Schedule struct {
	Trigger TriggerKind `yaml:"trigger" json:"trigger"`
	// At is the time of day as HH:MM.
	At         string   `yaml:"at,omitempty" json:"at,omitempty"`
	DayOfWeek  string   `yaml:"dayOfWeek,omitempty" json:"dayOfWeek,omitempty"`
	DayOfMonth int      `yaml:"dayOfMonth,omitempty" json:"dayOfMonth,omitempty"`
	Month      int      `yaml:"month,omitempty" json:"month,omitempty"`
	Interval   Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
}

func (s Schedule) String() string {
	switch s.Trigger {
	case TriggerDaily:
		return fmt.Sprintf("Daily@%s", s.At)
	case TriggerWeekly:
		return fmt.Sprintf("Weekly(%s)@%s", s.DayOfWeek, s.At)
	case TriggerMonthly:
		return fmt.Sprintf("Monthly(%d)@%s", s.DayOfMonth, s.At)
	case TriggerYearly:
		return fmt.Sprintf("Yearly(%d-%d)@%s", s.Month, s.DayOfMonth, s.At)
	case TriggerInterval:
		return fmt.Sprintf("Interval(%s)", s.Interval)
	default:
		return string(s.Trigger)
	}
}

// ParseTimeOfDay parses an HH:MM string. An empty string is midnight.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time of day %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ParseWeekday parses an English weekday name or its three letter abbreviation.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Duration is a time.Duration that (un)marshals as a Go duration string.
// A bare integer is read as seconds.
type Duration time.Duration

// D returns the underlying time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
