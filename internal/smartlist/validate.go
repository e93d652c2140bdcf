package smartlist

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSortKeys is the longest sort chain a playlist may declare.
const MaxSortKeys = 3

// ValidationError describes one problem with a list definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors flattens an error returned by Validate into its parts.
func ValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}
	var out []ValidationError
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			out = append(out, ValidationErrors(e)...)
		}
		return out
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return []ValidationError{ve}
	}
	return []ValidationError{{Message: err.Error()}}
}

// ReservedID is the refresh target meaning every list; no definition may use it.
const ReservedID = "all"

// Validate checks the definition and reports every problem at once. Invalid
// field/operator combinations are rejected here so they never reach evaluation.
func (l *SmartList) Validate() error {
	var errs []error
	fail := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case strings.TrimSpace(l.ID) == "":
		fail("id", "id is required")
	case strings.EqualFold(l.ID, ReservedID):
		fail("id", "id %q is reserved for refreshing every list", ReservedID)
	}
	if strings.TrimSpace(l.Name) == "" {
		fail("name", "name is required")
	}
	if l.Kind != KindPlaylist && l.Kind != KindCollection {
		fail("kind", "kind must be %q or %q", KindPlaylist, KindCollection)
	}
	if l.UserID == "" && !(l.IsPlaylist() && len(l.UserIDs) > 0) {
		fail("userId", "a reference user is required")
	}
	if l.IsCollection() && len(l.UserIDs) > 0 {
		fail("userIds", "only playlists can have several owners")
	}
	switch l.AutoRefresh {
	case "", RefreshNever, RefreshOnLibraryChanges, RefreshOnAllChanges:
	default:
		fail("autoRefresh", "unknown auto refresh mode %q", l.AutoRefresh)
	}
	for i, mt := range l.MediaTypes {
		if !mt.IsValid() {
			fail(fmt.Sprintf("mediaTypes[%d]", i), "unknown media type %q", mt)
		}
	}
	if l.MaxItems < 0 {
		fail("maxItems", "must not be negative")
	}
	if l.MaxPlayTime < 0 {
		fail("maxPlayTime", "must not be negative")
	}
	if l.MaxPlayTime > 0 && l.IsCollection() {
		fail("maxPlayTime", "only playlists support a play time limit")
	}

	if len(l.ExpressionSets) == 0 {
		fail("expressionSets", "at least one expression set is required")
	}
	for i, set := range l.ExpressionSets {
		for j, e := range set.Expressions {
			errs = append(errs, l.validateExpression(fmt.Sprintf("expressionSets[%d].expressions[%d]", i, j), e)...)
		}
	}

	errs = append(errs, l.validateOrder()...)

	for i, s := range l.Schedules {
		if err := s.Validate(); err != nil {
			fail(fmt.Sprintf("schedules[%d]", i), "%v", err)
		}
	}

	return errors.Join(errs...)
}

func (l *SmartList) validateExpression(path string, e Expression) []error {
	var errs []error
	fail := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: path + field, Message: fmt.Sprintf(format, args...)})
	}

	if !e.Field.IsValid() {
		fail(".field", "unknown field")
		return errs
	}
	if !e.Field.Allows(e.Operator) {
		fail(".operator", "operator %q is not valid for %s field %s", e.Operator, e.Field.Type(), e.Field)
	}
	if e.Operator != OpMatchRegex && !e.Operator.IsMultiValue() && strings.TrimSpace(e.Value) == "" && e.Field.Type() != TypeString {
		fail(".value", "a value is required")
	}
	if e.UserID != "" && !e.Field.UserScoped() {
		fail(".userId", "%s is not a user-scoped field", e.Field)
	}

	flags := e.Flags()
	for _, flag := range []Flag{FlagParentSeries, FlagUnwatchedSeries, FlagCollectionItself} {
		if flags&flag != 0 && !e.Field.Accepts(flag) {
			fail("", "%s does not support the %s option", e.Field, flagName(flag))
		}
	}
	if e.IncludeCollectionItself && !l.IsCollection() {
		fail(".includeCollectionItself", "only collections can match collection objects")
	}
	return errs
}

func flagName(f Flag) string {
	switch f {
	case FlagParentSeries:
		return "includeParentSeries"
	case FlagUnwatchedSeries:
		return "includeUnwatchedSeries"
	case FlagCollectionItself:
		return "includeCollectionItself"
	default:
		return fmt.Sprintf("flag(%d)", f)
	}
}

func (l *SmartList) validateOrder() []error {
	var errs []error
	fail := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(l.Order) == 0 {
		return nil
	}
	if l.IsCollection() {
		if len(l.Order) > 1 || l.Order[0].Field != SortNoOrder {
			fail("order", "collections cannot be sorted")
		}
		return errs
	}
	if len(l.Order) > MaxSortKeys {
		fail("order", "at most %d sort keys are allowed", MaxSortKeys)
	}
	for i, k := range l.Order {
		path := fmt.Sprintf("order[%d]", i)
		if !k.Field.IsValid() {
			fail(path+".field", "unknown sort field %q", k.Field)
			continue
		}
		switch k.Order {
		case "", Ascending, Descending:
		default:
			fail(path+".order", "unknown sort order %q", k.Order)
		}
		if (k.Field == SortRandom || k.Field == SortNoOrder) && len(l.Order) > 1 {
			fail(path+".field", "%s must be the only sort key", k.Field)
		}
		if k.Field == SortSimilarity && !l.HasField(FieldSimilarTo) {
			fail(path+".field", "Similarity ordering requires a SimilarTo expression")
		}
	}
	return errs
}

// Validate checks that the parameters required by the trigger are present.
func (s Schedule) Validate() error {
	switch s.Trigger {
	case TriggerDaily, TriggerWeekly, TriggerMonthly, TriggerYearly:
		if _, _, err := ParseTimeOfDay(s.At); err != nil {
			return err
		}
	case TriggerInterval:
		if s.Interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger %q", s.Trigger)
	}

	switch s.Trigger {
	case TriggerWeekly:
		if _, err := ParseWeekday(s.DayOfWeek); err != nil {
			return err
		}
	case TriggerMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("dayOfMonth must be between 1 and 31")
		}
	case TriggerYearly:
		if s.Month < 1 || s.Month > 12 {
			return fmt.Errorf("month must be between 1 and 12")
		}
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("dayOfMonth must be between 1 and 31")
		}
	}
	return nil
}
