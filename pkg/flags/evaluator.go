package flags

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Evaluator runs the evaluation cascade: disabled -> override -> rules ->
// percentage rollout -> default. It holds no shared mutable state, so a
// single instance is safe for concurrent use across unrelated evaluations;
// the only suspension points are calls into the storage collaborator.
type Evaluator struct {
	storage     Storage
	recorder    Recorder
	log         *slog.Logger
	multiTenant bool
	debug       bool
	now         func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for storage-degradation and internal
// fallback telemetry. The clean hot path never logs.
func WithLogger(log *slog.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRecorder attaches an evaluation recorder; every decision is then
// reported to it. Recording failures are logged, never surfaced.
func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) {
		e.recorder = r
	}
}

// WithMultiTenant scopes flag lookups by the context's organization ID.
func WithMultiTenant(enabled bool) Option {
	return func(e *Evaluator) {
		e.multiTenant = enabled
	}
}

// WithConfig applies process-level settings loaded via LoadConfig.
func WithConfig(cfg Config) Option {
	return func(e *Evaluator) {
		e.multiTenant = cfg.MultiTenant
		e.debug = cfg.Debug
	}
}

// WithClock overrides the time source used for override expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an evaluator backed by the given storage collaborator.
func NewEvaluator(storage Storage, opts ...Option) (*Evaluator, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}
	e := &Evaluator{
		storage: storage,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EvaluateOption tweaks a single evaluation call.
type EvaluateOption func(*evalSettings)

type evalSettings struct {
	debug bool
}

// WithDebug attaches an ordered, timed cascade trace to the result metadata.
// The trace never changes the decision itself.
func WithDebug() EvaluateOption {
	return func(s *evalSettings) {
		s.debug = true
	}
}

func (e *Evaluator) settings(opts []EvaluateOption) evalSettings {
	s := evalSettings{debug: e.debug}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Evaluate fetches the flag with the given key and runs the cascade for the
// context. It never fails outward: an unknown key yields the not_found
// reason, a storage failure degrades to the default reason with error
// metadata, and every other path terminates at a clean decision.
func (e *Evaluator) Evaluate(ctx context.Context, key string, ectx EvaluationContext, opts ...EvaluateOption) EvaluationResult {
	f, err := e.fetchFlag(ctx, key, ectx)
	switch {
	case errors.Is(err, ErrFlagNotFound):
		res := EvaluationResult{FlagKey: key, Reason: ReasonNotFound}
		e.record(ctx, nil, ectx, res)
		return res
	case err != nil:
		e.log.WarnContext(ctx, "flag lookup failed", "flag_key", key, "error", err)
		res := EvaluationResult{FlagKey: key, Reason: ReasonDefault, Metadata: Metadata{Error: true}}
		e.record(ctx, nil, ectx, res)
		return res
	}
	return e.EvaluateFlag(ctx, f, ectx, opts...)
}

func (e *Evaluator) fetchFlag(ctx context.Context, key string, ectx EvaluationContext) (*Flag, error) {
	orgID := ""
	if e.multiTenant {
		orgID = ectx.OrganizationID
	}
	return e.storage.GetFlag(ctx, key, orgID)
}

// EvaluateFlag runs the cascade against an already-fetched flag snapshot.
// Internal panics degrade to the flag's default value with error metadata and
// are reported as telemetry only.
func (e *Evaluator) EvaluateFlag(ctx context.Context, f *Flag, ectx EvaluationContext, opts ...EvaluateOption) (res EvaluationResult) {
	if f == nil {
		return EvaluationResult{Reason: ReasonNotFound}
	}
	set := e.settings(opts)

	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "flag evaluation panicked",
				"flag_key", f.Key, "panic", fmt.Sprint(r))
			res = EvaluationResult{
				FlagKey:  f.Key,
				Value:    f.DefaultValue,
				Reason:   ReasonDefault,
				Metadata: Metadata{Error: true},
			}
		}
		e.record(ctx, f, ectx, res)
	}()

	res = e.cascade(ctx, f, ectx, set)
	return res
}

func (e *Evaluator) cascade(ctx context.Context, f *Flag, ectx EvaluationContext, set evalSettings) EvaluationResult {
	var tr *tracer
	if set.debug {
		tr = newTracer()
	}

	// Step 1: disabled short-circuits everything, including overrides.
	if !f.Enabled {
		res := EvaluationResult{FlagKey: f.Key, Value: f.DefaultValue, Reason: ReasonDisabled}
		tr.finish(&res, "disabled", "flag is disabled")
		return res
	}
	tr.step("disabled", "flag is enabled")

	// Step 2: override. Anonymous contexts never match.
	if !ectx.Anonymous() {
		override, err := e.storage.GetOverride(ctx, f.ID, ectx.UserID)
		switch {
		case err == nil && override.Active(e.now()):
			res := EvaluationResult{
				FlagKey:  f.Key,
				Value:    override.Value,
				Variant:  override.Variant,
				Reason:   ReasonOverride,
				Metadata: Metadata{OverrideID: override.ID},
			}
			tr.finish(&res, "override", "active override matched")
			return res
		case err != nil && !errors.Is(err, ErrOverrideNotFound):
			// Degrade to "no override" and keep evaluating.
			e.log.WarnContext(ctx, "override lookup failed",
				"flag_key", f.Key, "user_id", ectx.UserID, "error", err)
		}
	}
	tr.step("override", "no active override")

	// Step 3: rules, ascending priority, first enabled match wins.
	rules, err := e.storage.GetRulesForFlag(ctx, f.ID)
	if err != nil {
		e.log.WarnContext(ctx, "rule lookup failed", "flag_key", f.Key, "error", err)
		rules = nil
	}
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		if !Match(rule.Conditions, ectx) {
			continue
		}
		// Optional sub-rollout within the rule; a rule-scoped hash suffix
		// keeps it decorrelated from the flag-level rollout gate.
		if rule.Percentage != nil && Bucket(rolloutKey(ectx.UserID, f.Key)+":"+rule.ID) >= *rule.Percentage {
			continue
		}
		value := rule.Value
		if value == nil {
			value = f.DefaultValue
		}
		priority := rule.Priority
		res := EvaluationResult{
			FlagKey: f.Key,
			Value:   value,
			Variant: SelectVariant(f, ectx.UserID),
			Reason:  ReasonRuleMatch,
			Metadata: Metadata{
				RuleID:       rule.ID,
				RuleName:     rule.Name,
				RulePriority: &priority,
			},
		}
		tr.finish(&res, "rules", fmt.Sprintf("rule %s matched at priority %d", rule.ID, priority))
		return res
	}
	tr.step("rules", "no rule matched")

	// Step 4: percentage rollout. A percentage of 100 (or none) disables the
	// gate entirely and evaluation falls through to the default step, keeping
	// the reason stream of fully-rolled-out flags unchanged.
	if pct := f.RolloutPercentage; pct != nil && *pct < 100 {
		included := *pct > 0 && InRollout(ectx.UserID, f.Key, *pct)
		percentage := *pct
		inc := included
		md := Metadata{RolloutPercentage: &percentage, Included: &inc}
		res := EvaluationResult{FlagKey: f.Key, Reason: ReasonPercentageRollout, Metadata: md}
		if included {
			res.Value = f.DefaultValue
			if f.Type == TypeBoolean {
				res.Value = true
			}
			res.Variant = SelectVariant(f, ectx.UserID)
			tr.finish(&res, "rollout", fmt.Sprintf("included at %d%%", percentage))
			return res
		}
		res.Value = f.DefaultValue
		if f.Type == TypeBoolean {
			res.Value = false
		}
		tr.finish(&res, "rollout", fmt.Sprintf("excluded at %d%%", percentage))
		return res
	}
	tr.step("rollout", "no rollout gate")

	// Step 5: terminal fallback.
	res := EvaluationResult{FlagKey: f.Key, Value: f.DefaultValue, Reason: ReasonDefault}
	tr.finish(&res, "default", "default value")
	return res
}

func (e *Evaluator) record(ctx context.Context, f *Flag, ectx EvaluationContext, res EvaluationResult) {
	if e.recorder == nil {
		return
	}
	rec := Record{
		FlagKey:        res.FlagKey,
		UserID:         ectx.UserID,
		OrganizationID: ectx.OrganizationID,
		Value:          res.Value,
		Variant:        res.Variant,
		Reason:         res.Reason,
		Error:          res.Metadata.Error,
		CreatedAt:      e.now(),
	}
	if f != nil {
		rec.FlagID = f.ID
	}
	if err := e.recorder.Record(ctx, rec); err != nil {
		e.log.DebugContext(ctx, "evaluation record dropped",
			"flag_key", res.FlagKey, "error", err)
	}
}
