package flags

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Operator compares a resolved context attribute against a condition target.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpRegex              Operator = "regex"
)

// LogicOperator combines the condition list of the legacy flat form.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Condition is a single attribute comparison.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value,omitempty"`
}

// Conditions is a rule's boolean targeting expression. Two shapes are
// supported for backward compatibility:
//
//   - the legacy flat form: a Conditions list combined with Operator
//     (AND unless explicitly OR);
//   - the nested form: All, Any, and Not clauses, each AND-ed into the
//     running result.
//
// The shape is discriminated once at the entry point: a non-empty Conditions
// list selects the legacy form. An expression with none of the fields set
// matches every context, which is how pure percentage-gate rules are written.
type Conditions struct {
	// Legacy flat form.
	Conditions []Condition   `json:"conditions,omitempty"`
	Operator   LogicOperator `json:"operator,omitempty"`

	// Nested form.
	All []ConditionNode `json:"all,omitempty"`
	Any []ConditionNode `json:"any,omitempty"`
	Not *Conditions     `json:"not,omitempty"`
}

// ConditionNode is an element of a nested All or Any list: either a leaf
// comparison or a nested group.
type ConditionNode struct {
	Condition

	All []ConditionNode `json:"all,omitempty"`
	Any []ConditionNode `json:"any,omitempty"`
	Not *Conditions     `json:"not,omitempty"`
}

func (n ConditionNode) group() bool {
	return len(n.All) > 0 || len(n.Any) > 0 || n.Not != nil
}

// Match evaluates a targeting expression against a context. It is pure,
// performs no I/O, and never errors: malformed input degrades to a non-match.
// Unknown operators, invalid regex patterns, and unresolvable attribute paths
// all evaluate to false. A nil or empty expression matches everything.
func Match(c *Conditions, ectx EvaluationContext) bool {
	if c == nil {
		return true
	}
	if len(c.Conditions) > 0 {
		return matchLegacy(c.Conditions, c.Operator, ectx)
	}
	return matchNested(c.All, c.Any, c.Not, ectx)
}

func matchLegacy(conds []Condition, op LogicOperator, ectx EvaluationContext) bool {
	if op == LogicOr {
		for _, c := range conds {
			if matchCondition(c, ectx) {
				return true
			}
		}
		return false
	}
	for _, c := range conds {
		if !matchCondition(c, ectx) {
			return false
		}
	}
	return true
}

func matchNested(all, anyOf []ConditionNode, not *Conditions, ectx EvaluationContext) bool {
	for _, n := range all {
		if !matchNode(n, ectx) {
			return false
		}
	}
	if len(anyOf) > 0 {
		matched := false
		for _, n := range anyOf {
			if matchNode(n, ectx) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if not != nil && Match(not, ectx) {
		return false
	}
	return true
}

func matchNode(n ConditionNode, ectx EvaluationContext) bool {
	if n.group() {
		return matchNested(n.All, n.Any, n.Not, ectx)
	}
	return matchCondition(n.Condition, ectx)
}

func matchCondition(c Condition, ectx EvaluationContext) bool {
	value, ok := ectx.Attribute(c.Attribute)
	if !ok {
		// An absent attribute never matches; no listed operator tests for absence.
		return false
	}

	switch c.Operator {
	case OpEquals:
		return looseEqual(value, c.Value)
	case OpNotEquals:
		return !looseEqual(value, c.Value)
	case OpContains:
		return strings.Contains(coerceString(value), coerceString(c.Value))
	case OpNotContains:
		return !strings.Contains(coerceString(value), coerceString(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(coerceString(value), coerceString(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(coerceString(value), coerceString(c.Value))
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		a, aok := coerceNumber(value)
		b, bok := coerceNumber(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Operator {
		case OpGreaterThan:
			return a > b
		case OpGreaterThanOrEqual:
			return a >= b
		case OpLessThan:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		list, ok := asList(c.Value)
		if !ok {
			return false
		}
		return containsLoose(list, value)
	case OpNotIn:
		list, ok := asList(c.Value)
		if !ok {
			return false
		}
		return !containsLoose(list, value)
	case OpRegex:
		re, err := regexp.Compile(coerceString(c.Value))
		if err != nil {
			return false
		}
		return re.MatchString(coerceString(value))
	default:
		return false
	}
}

// looseEqual compares two values the way the targeting language does:
// numerically when both sides coerce to numbers, natively for two booleans,
// otherwise on string-coerced representations. "10" therefore equals 10.
func looseEqual(a, b any) bool {
	if af, aok := coerceNumber(a); aok {
		if bf, bok := coerceNumber(b); bok {
			return af == bf
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return coerceString(a) == coerceString(b)
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func containsLoose(list []any, v any) bool {
	for _, item := range list {
		if looseEqual(v, item) {
			return true
		}
	}
	return false
}
