// Package flags implements a deterministic feature-flag evaluation engine:
// given a flag definition, a request-time evaluation context, and a set of
// targeting rules, it decides which value (and optional variant) a user or
// session should see, and records why.
//
// # Architecture
//
// Evaluation runs a strictly ordered cascade; the first terminal step wins:
//
//  1. Disabled - a disabled flag always returns its default value,
//     regardless of overrides, rules, or rollout configuration.
//  2. Override - an enabled, unexpired per-user override wins over all flag
//     logic. Anonymous contexts skip this step.
//  3. Rules - targeting rules evaluate in ascending priority order; the
//     first enabled rule whose conditions match returns its value.
//  4. Rollout - a percentage gate buckets users with a stable hash. A
//     percentage of 100 (or none) disables the gate and evaluation falls
//     through to the default step.
//  5. Default - the terminal fallback.
//
// Flags, rules, and overrides are owned by a storage collaborator behind the
// Storage interface; the engine reads transient snapshots and never mutates
// them. Postgres, redis, mongo, and YAML-file implementations live in the
// sibling flagpg, flagredis, flagmongo, and flagfile packages, and
// MemoryStorage in this package covers tests and in-process deployments.
//
// # Usage
//
//	storage, err := flags.NewMemoryStorage(
//		&flags.Flag{
//			Key:          "new-checkout",
//			Type:         flags.TypeBoolean,
//			Enabled:      true,
//			DefaultValue: false,
//		},
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	evaluator, err := flags.NewEvaluator(storage)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result := evaluator.Evaluate(ctx, "new-checkout", flags.EvaluationContext{
//		UserID:     "user-123",
//		Attributes: map[string]any{"plan": "pro"},
//	})
//	if result.Value == true {
//		// Show the new checkout
//	}
//
// Batch evaluation fetches all requested flags concurrently and isolates
// per-key failures:
//
//	results := evaluator.EvaluateMany(ctx, []string{"new-checkout", "dark-mode"}, ectx)
//
// # Targeting conditions
//
// Rules carry a boolean expression tree in one of two shapes: the legacy
// flat form (a condition list combined with AND or OR) and the nested form
// (all/any/not groups). Attributes resolve with dot-notation paths into the
// context's attribute bag ("user.plan"); a path that does not resolve never
// matches. Operators cover equality, substring, prefix/suffix, numeric
// comparison, list membership, and regular expressions. Malformed input -
// unknown operators, invalid regex patterns - degrades to a non-match rather
// than failing evaluation.
//
// # Determinism
//
// Rollout bucketing and variant assignment derive from a stable string hash
// of "{userId}:{flagKey}" (see Hash32): the same user and flag configuration
// produce bit-identical results across calls, processes, and restarts. The
// hash algorithm is pinned by regression fixtures and must never change.
//
// # Error Handling
//
// Evaluation never fails outward. Storage failures degrade per call-site (a
// failed override lookup means "no override", a failed rule lookup means "no
// rules") and surface through the injected slog.Logger only. An unknown flag
// key yields the distinct not_found reason. Every result carries a Reason
// explaining its provenance, and debug evaluation adds an ordered step trace
// without altering the decision.
//
// # Performance Considerations
//
// The cascade is CPU-bound and allocation-light; storage calls are the only
// suspension points. The evaluator holds no shared mutable state and needs
// no locking. When a Recorder is attached, records are handed off through a
// non-blocking buffered writer (see AsyncRecorder) so the hot path never
// waits on log persistence.
//
// Run benchmarks with: go test -bench=. ./pkg/flags/...
package flags
