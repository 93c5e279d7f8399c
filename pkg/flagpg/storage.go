package flagpg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagkit/flagkit/pkg/flags"
)

// Storage implements flags.Storage on a PostgreSQL connection pool. Flags,
// rules, and overrides live in the feature_flags, flag_rules, and
// flag_overrides tables; document-shaped columns (default values, variants,
// conditions) are stored as JSONB. The globally scoped variant of a flag uses
// an empty organization_id.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage wraps an established connection pool.
func NewStorage(pool *pgxpool.Pool) (*Storage, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	return &Storage{pool: pool}, nil
}

const getFlagQuery = `
SELECT id, key, name, type, enabled, default_value, rollout_percentage,
       variants, organization_id, created_at, updated_at
FROM feature_flags
WHERE key = $1 AND organization_id IN ('', $2)
ORDER BY organization_id DESC
LIMIT 1`

// GetFlag implements flags.Storage. A tenant-scoped lookup prefers the
// organization's flag and falls back to the globally scoped one.
func (s *Storage) GetFlag(ctx context.Context, key, orgID string) (*flags.Flag, error) {
	row := s.pool.QueryRow(ctx, getFlagQuery, key, orgID)

	var (
		f            flags.Flag
		defaultValue []byte
		variants     []byte
	)
	err := row.Scan(&f.ID, &f.Key, &f.Name, &f.Type, &f.Enabled, &defaultValue,
		&f.RolloutPercentage, &variants, &f.OrganizationID, &f.CreatedAt, &f.UpdatedAt)
	if IsNotFoundError(err) {
		return nil, flags.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query flag %q: %w", key, err)
	}

	if len(defaultValue) > 0 {
		if err := json.Unmarshal(defaultValue, &f.DefaultValue); err != nil {
			return nil, fmt.Errorf("decode default value of flag %q: %w", key, err)
		}
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &f.Variants); err != nil {
			return nil, fmt.Errorf("decode variants of flag %q: %w", key, err)
		}
	}
	return &f, nil
}

const getRulesQuery = `
SELECT id, flag_id, name, priority, conditions, value, percentage, enabled
FROM flag_rules
WHERE flag_id = $1
ORDER BY priority ASC`

// GetRulesForFlag implements flags.Storage, returning rules in ascending
// priority order.
func (s *Storage) GetRulesForFlag(ctx context.Context, flagID string) ([]flags.Rule, error) {
	rows, err := s.pool.Query(ctx, getRulesQuery, flagID)
	if err != nil {
		return nil, fmt.Errorf("query rules of flag %s: %w", flagID, err)
	}
	defer rows.Close()

	var rules []flags.Rule
	for rows.Next() {
		var (
			r          flags.Rule
			conditions []byte
			value      []byte
		)
		if err := rows.Scan(&r.ID, &r.FlagID, &r.Name, &r.Priority,
			&conditions, &value, &r.Percentage, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan rule of flag %s: %w", flagID, err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
				return nil, fmt.Errorf("decode conditions of rule %s: %w", r.ID, err)
			}
		}
		if len(value) > 0 {
			if err := json.Unmarshal(value, &r.Value); err != nil {
				return nil, fmt.Errorf("decode value of rule %s: %w", r.ID, err)
			}
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules of flag %s: %w", flagID, err)
	}
	return rules, nil
}

const getOverrideQuery = `
SELECT id, flag_id, user_id, value, variant, enabled, expires_at
FROM flag_overrides
WHERE flag_id = $1 AND user_id = $2`

// GetOverride implements flags.Storage. At most one override exists per
// (flag, user) pair; the table enforces it with a unique constraint.
func (s *Storage) GetOverride(ctx context.Context, flagID, userID string) (*flags.Override, error) {
	row := s.pool.QueryRow(ctx, getOverrideQuery, flagID, userID)

	var (
		o     flags.Override
		value []byte
	)
	err := row.Scan(&o.ID, &o.FlagID, &o.UserID, &value, &o.Variant, &o.Enabled, &o.ExpiresAt)
	if IsNotFoundError(err) {
		return nil, flags.ErrOverrideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query override of flag %s for user %s: %w", flagID, userID, err)
	}
	if len(value) > 0 {
		if err := json.Unmarshal(value, &o.Value); err != nil {
			return nil, fmt.Errorf("decode value of override %s: %w", o.ID, err)
		}
	}
	return &o, nil
}
