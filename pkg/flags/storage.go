package flags

import "context"

// Storage is the collaborator owning flag, rule, and override persistence.
// The engine only ever reads transient snapshots through it for the duration
// of one evaluation call; flags are created and mutated by administrative
// tooling elsewhere.
//
// Implementations must be safe for concurrent use and must honor context
// cancellation: storage calls are the only suspension points in the engine.
type Storage interface {
	// GetFlag returns the flag with the given key. When orgID is non-empty
	// the lookup is additionally scoped to that organization. Returns
	// ErrFlagNotFound when no such flag exists.
	GetFlag(ctx context.Context, key, orgID string) (*Flag, error)

	// GetRulesForFlag returns the flag's rules ordered by ascending priority.
	// Disabled rules are included; the evaluator skips them.
	GetRulesForFlag(ctx context.Context, flagID string) ([]Rule, error)

	// GetOverride returns the override for the (flag, user) pair, or
	// ErrOverrideNotFound when none exists.
	GetOverride(ctx context.Context, flagID, userID string) (*Override, error)
}
