package smartlist

import (
	"fmt"
	"strings"
)

// Operator is the comparison an expression applies.
type Operator string

const (
	OpEqual              Operator = "Equal"
	OpNotEqual           Operator = "NotEqual"
	OpContains           Operator = "Contains"
	OpNotContains        Operator = "NotContains"
	OpIsIn               Operator = "IsIn"
	OpIsNotIn            Operator = "IsNotIn"
	OpGreaterThan        Operator = "GreaterThan"
	OpLessThan           Operator = "LessThan"
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpAfter              Operator = "After"
	OpBefore             Operator = "Before"
	OpNewerThan          Operator = "NewerThan"
	OpOlderThan          Operator = "OlderThan"
	OpWeekday            Operator = "Weekday"
	OpMatchRegex         Operator = "MatchRegex"
)

var allOperators = []Operator{
	OpEqual, OpNotEqual, OpContains, OpNotContains, OpIsIn, OpIsNotIn,
	OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
	OpAfter, OpBefore, OpNewerThan, OpOlderThan, OpWeekday, OpMatchRegex,
}

// ParseOperator converts a case-insensitive operator name into an Operator.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	for _, op := range allOperators {
		if strings.EqualFold(string(op), s) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Negated reports whether the operator is the negative form of another one.
func (o Operator) Negated() bool {
	switch o {
	case OpNotEqual, OpNotContains, OpIsNotIn:
		return true
	}
	return false
}

// IsMultiValue reports whether the operator's target is a semicolon separated list.
func (o Operator) IsMultiValue() bool {
	return o == OpIsIn || o == OpIsNotIn
}

// OperatorsFor returns the closed allow-list of operators for a field type.
func OperatorsFor(t FieldType) []Operator {
	switch t {
	case TypeString:
		return []Operator{OpEqual, OpNotEqual, OpContains, OpNotContains, OpIsIn, OpIsNotIn, OpMatchRegex}
	case TypeStringSet:
		return []Operator{OpContains, OpNotContains, OpIsIn, OpIsNotIn, OpMatchRegex}
	case TypeNumeric:
		return []Operator{OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual}
	case TypeBoolean:
		return []Operator{OpEqual, OpNotEqual}
	case TypeDate:
		return []Operator{OpAfter, OpBefore, OpNewerThan, OpOlderThan, OpWeekday}
	case TypeEnum:
		return []Operator{OpEqual, OpNotEqual, OpIsIn, OpIsNotIn}
	default:
		return nil
	}
}
