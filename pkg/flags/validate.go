package flags

import (
	"errors"
	"fmt"
	"math"
)

// Weight sums are accepted within this tolerance of 100 to absorb the float
// noise of admin tooling that splits percentages client-side.
const weightSumTolerance = 0.01

const (
	minRulePriority = -1000
	maxRulePriority = 1000
)

// ValidateFlag checks the invariants the evaluation engine depends on:
// a non-empty key, a known type, a rollout percentage inside [0,100], and
// variant weights that are either absent everywhere or present everywhere
// and summing to 100.
func ValidateFlag(f *Flag) error {
	if f == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}
	if f.Key == "" {
		return errors.Join(ErrInvalidFlag, errors.New("flag key cannot be empty"))
	}
	switch f.Type {
	case TypeBoolean, TypeString, TypeNumber, TypeJSON, "":
	default:
		return errors.Join(ErrInvalidFlag, fmt.Errorf("unknown flag type %q", f.Type))
	}
	if pct := f.RolloutPercentage; pct != nil && (*pct < 0 || *pct > 100) {
		return errors.Join(ErrInvalidFlag, fmt.Errorf("rollout percentage %d outside [0,100]", *pct))
	}

	weightedCount := 0
	total := 0.0
	for _, v := range f.Variants {
		if v.Key == "" {
			return errors.Join(ErrInvalidFlag, errors.New("variant key cannot be empty"))
		}
		if v.Weight != nil {
			if *v.Weight < 0 {
				return errors.Join(ErrInvalidFlag, fmt.Errorf("variant %q has negative weight", v.Key))
			}
			weightedCount++
			total += *v.Weight
		}
	}
	if weightedCount > 0 && weightedCount != len(f.Variants) {
		return errors.Join(ErrInvalidFlag, errors.New("variant weights must be set on all variants or none"))
	}
	if weightedCount > 0 && math.Abs(total-100) > weightSumTolerance {
		return errors.Join(ErrInvalidFlag, fmt.Errorf("variant weights sum to %v, want 100", total))
	}
	return nil
}

// ValidateRule checks a rule's structural invariants. Condition semantics are
// not validated here: the evaluator degrades malformed conditions to a
// non-match rather than rejecting the rule.
func ValidateRule(r *Rule) error {
	if r == nil {
		return errors.Join(ErrInvalidRule, errors.New("rule cannot be nil"))
	}
	if r.Priority < minRulePriority || r.Priority > maxRulePriority {
		return errors.Join(ErrInvalidRule, fmt.Errorf("priority %d outside [%d,%d]", r.Priority, minRulePriority, maxRulePriority))
	}
	if pct := r.Percentage; pct != nil && (*pct < 0 || *pct > 100) {
		return errors.Join(ErrInvalidRule, fmt.Errorf("rule percentage %d outside [0,100]", *pct))
	}
	return nil
}
