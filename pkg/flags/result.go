package flags

import "time"

// Reason tags the cascade step that produced a result, explaining the
// provenance of the returned value.
type Reason string

const (
	ReasonDisabled          Reason = "disabled"
	ReasonOverride          Reason = "override"
	ReasonRuleMatch         Reason = "rule_match"
	ReasonPercentageRollout Reason = "percentage_rollout"
	ReasonDefault           Reason = "default"
	ReasonNotFound          Reason = "not_found"
)

// EvaluationResult is the outcome of evaluating one flag for one context.
// Evaluation never fails outward: callers always receive some value together
// with the reason it was chosen.
type EvaluationResult struct {
	FlagKey  string   `json:"flag_key"`
	Value    any      `json:"value,omitempty"`
	Variant  string   `json:"variant,omitempty"`
	Reason   Reason   `json:"reason"`
	Metadata Metadata `json:"metadata"`
}

// Metadata records decision provenance: which rule or override matched, the
// rollout gate outcome, and whether an internal failure forced a fallback.
type Metadata struct {
	RuleID            string      `json:"rule_id,omitempty"`
	RuleName          string      `json:"rule_name,omitempty"`
	RulePriority      *int        `json:"rule_priority,omitempty"`
	OverrideID        string      `json:"override_id,omitempty"`
	RolloutPercentage *int        `json:"rollout_percentage,omitempty"`
	Included          *bool       `json:"included,omitempty"`
	Error             bool        `json:"error,omitempty"`
	Debug             *DebugTrace `json:"debug,omitempty"`
}

// DebugTrace is the ordered step-by-step account of one cascade run,
// populated only when debug evaluation is requested. It never influences the
// decision itself.
type DebugTrace struct {
	Steps   []TraceStep   `json:"steps"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// TraceStep describes one cascade step and how long it took.
type TraceStep struct {
	Step    string        `json:"step"`
	Outcome string        `json:"outcome"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// tracer accumulates cascade steps. All methods are nil-safe so the hot path
// pays nothing when debug mode is off.
type tracer struct {
	start time.Time
	last  time.Time
	steps []TraceStep
}

func newTracer() *tracer {
	now := time.Now()
	return &tracer{start: now, last: now}
}

func (t *tracer) step(name, outcome string) {
	if t == nil {
		return
	}
	now := time.Now()
	t.steps = append(t.steps, TraceStep{Step: name, Outcome: outcome, Elapsed: now.Sub(t.last)})
	t.last = now
}

// finish records the terminal step and attaches the trace to the result.
func (t *tracer) finish(res *EvaluationResult, name, outcome string) {
	if t == nil {
		return
	}
	t.step(name, outcome)
	res.Metadata.Debug = &DebugTrace{Steps: t.steps, Elapsed: time.Since(t.start)}
}
