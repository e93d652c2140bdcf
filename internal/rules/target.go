package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"smartlists/internal/smartlist"
)

// Target is an expression's target value parsed once per refresh for its
// operator and field type.
type Target struct {
	Raw string

	folded  string
	set     map[string]struct{}
	num     float64
	date    time.Time
	age     relativeAge
	weekday time.Weekday
	re      *regexp.Regexp
}

type relativeAge struct {
	amount int
	unit   string
}

// cutoff subtracts the age from now in UTC.
func (a relativeAge) cutoff(now time.Time) time.Time {
	now = now.UTC()
	switch a.unit {
	case "hours":
		return now.Add(-time.Duration(a.amount) * time.Hour)
	case "days":
		return now.AddDate(0, 0, -a.amount)
	case "weeks":
		return now.AddDate(0, 0, -7*a.amount)
	case "months":
		return now.AddDate(0, -a.amount, 0)
	default:
		return now.AddDate(-a.amount, 0, 0)
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// fold case-folds s. A Caser is not safe for concurrent use, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// ParseTarget parses raw for op on a field of type ft. An error means the
// expression cannot match anything and should be disabled.
func ParseTarget(ft smartlist.FieldType, op smartlist.Operator, raw string) (Target, error) {
	t := Target{Raw: raw}
	value := strings.TrimSpace(raw)

	switch op {
	case smartlist.OpEqual, smartlist.OpNotEqual:
		switch ft {
		case smartlist.TypeNumeric:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, fmt.Errorf("%q is not a number", raw)
			}
			t.num = n
		case smartlist.TypeBoolean:
			lower := strings.ToLower(value)
			if lower != "true" && lower != "false" {
				return t, fmt.Errorf("%q is not true or false", raw)
			}
			t.folded = lower
		default:
			t.folded = fold(value)
		}

	case smartlist.OpContains, smartlist.OpNotContains:
		t.folded = fold(value)

	case smartlist.OpIsIn, smartlist.OpIsNotIn:
		t.set = make(map[string]struct{})
		for _, part := range strings.Split(raw, ";") {
			if part = strings.TrimSpace(part); part != "" {
				t.set[fold(part)] = struct{}{}
			}
		}

	case smartlist.OpGreaterThan, smartlist.OpLessThan, smartlist.OpGreaterThanOrEqual, smartlist.OpLessThanOrEqual:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return t, fmt.Errorf("%q is not a number", raw)
		}
		t.num = n

	case smartlist.OpAfter, smartlist.OpBefore:
		d, err := parseDate(value)
		if err != nil {
			return t, err
		}
		t.date = d

	case smartlist.OpNewerThan, smartlist.OpOlderThan:
		age, err := parseRelativeAge(value)
		if err != nil {
			return t, err
		}
		t.age = age

	case smartlist.OpWeekday:
		d, err := smartlist.ParseWeekday(value)
		if err != nil {
			return t, err
		}
		t.weekday = d

	case smartlist.OpMatchRegex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return t, fmt.Errorf("invalid regular expression: %w", err)
		}
		t.re = re

	default:
		return t, fmt.Errorf("unknown operator %q", op)
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date", s)
}

// parseRelativeAge parses "<amount>:<unit>".
func parseRelativeAge(s string) (relativeAge, error) {
	amount, unit, ok := strings.Cut(s, ":")
	if !ok {
		return relativeAge{}, fmt.Errorf("relative date %q is not <amount>:<unit>", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil || n < 0 {
		return relativeAge{}, fmt.Errorf("invalid amount in %q", s)
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if !strings.HasSuffix(unit, "s") {
		unit += "s"
	}
	switch unit {
	case "hours", "days", "weeks", "months", "years":
		return relativeAge{amount: n, unit: unit}, nil
	}
	return relativeAge{}, fmt.Errorf("unknown unit in %q", s)
}

// Evaluate applies op to a resolved value and a parsed target. now is the
// evaluation instant used by relative date operators.
func Evaluate(op smartlist.Operator, v Value, t Target, now time.Time) bool {
	switch op {
	case smartlist.OpEqual:
		return equal(v, t)
	case smartlist.OpNotEqual:
		return !equal(v, t)
	case smartlist.OpContains:
		return contains(v, t)
	case smartlist.OpNotContains:
		return !contains(v, t)
	case smartlist.OpIsIn:
		return isIn(v, t)
	case smartlist.OpIsNotIn:
		return !isIn(v, t)
	case smartlist.OpGreaterThan:
		return v.Type == smartlist.TypeNumeric && v.Num > t.num
	case smartlist.OpLessThan:
		return v.Type == smartlist.TypeNumeric && v.Num < t.num
	case smartlist.OpGreaterThanOrEqual:
		return v.Type == smartlist.TypeNumeric && (v.Num > t.num || numEqual(v.Num, t.num))
	case smartlist.OpLessThanOrEqual:
		return v.Type == smartlist.TypeNumeric && (v.Num < t.num || numEqual(v.Num, t.num))
	case smartlist.OpAfter:
		return v.Type == smartlist.TypeDate && v.Time.UTC().After(t.date)
	case smartlist.OpBefore:
		return v.Type == smartlist.TypeDate && v.Time.UTC().Before(t.date)
	case smartlist.OpNewerThan:
		return v.Type == smartlist.TypeDate && v.Time.UTC().After(t.age.cutoff(now))
	case smartlist.OpOlderThan:
		return v.Type == smartlist.TypeDate && v.Time.UTC().Before(t.age.cutoff(now))
	case smartlist.OpWeekday:
		return v.Type == smartlist.TypeDate && v.Time.UTC().Weekday() == t.weekday
	case smartlist.OpMatchRegex:
		return matchRegex(v, t)
	}
	return false
}

func numEqual(a, b float64) bool {
	const epsilon = 1e-9
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func equal(v Value, t Target) bool {
	switch v.Type {
	case smartlist.TypeNumeric:
		return numEqual(v.Num, t.num)
	case smartlist.TypeBoolean:
		return strconv.FormatBool(v.Bool) == t.folded
	case smartlist.TypeStringSet:
		for _, s := range v.Set {
			if fold(s) == t.folded {
				return true
			}
		}
		return false
	default:
		return fold(v.Str) == t.folded
	}
}

func contains(v Value, t Target) bool {
	if v.Type == smartlist.TypeStringSet {
		for _, s := range v.Set {
			if fold(s) == t.folded {
				return true
			}
		}
		return false
	}
	return strings.Contains(fold(v.Str), t.folded)
}

func isIn(v Value, t Target) bool {
	if v.Type == smartlist.TypeStringSet {
		for _, s := range v.Set {
			if _, ok := t.set[fold(s)]; ok {
				return true
			}
		}
		return false
	}
	_, ok := t.set[fold(v.Str)]
	return ok
}

func matchRegex(v Value, t Target) bool {
	if t.re == nil {
		return false
	}
	if v.Type == smartlist.TypeStringSet {
		for _, s := range v.Set {
			if t.re.MatchString(s) {
				return true
			}
		}
		return false
	}
	return t.re.MatchString(v.Str)
}
