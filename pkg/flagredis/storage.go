package flagredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/flagkit/flagkit/pkg/flags"
)

// Storage implements flags.Storage on Redis. Each flag, rule set, and
// override is a single JSON document:
//
//	{prefix}:flag:{key}                    globally scoped flag
//	{prefix}:flag:{orgID}:{key}            organization-scoped flag
//	{prefix}:rules:{flagID}                rule list, pre-sorted by priority
//	{prefix}:override:{flagID}:{userID}    per-user override
//
// Reads are single GET round-trips, which keeps Redis a good fit for edge
// evaluation where flag lookups sit on the request path.
type Storage struct {
	client *redis.Client
	prefix string
}

// NewStorage wraps an established Redis client. An empty prefix defaults to
// "flags".
func NewStorage(client *redis.Client, prefix string) (*Storage, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if prefix == "" {
		prefix = "flags"
	}
	return &Storage{client: client, prefix: prefix}, nil
}

func (s *Storage) flagKey(key, orgID string) string {
	if orgID == "" {
		return s.prefix + ":flag:" + key
	}
	return s.prefix + ":flag:" + orgID + ":" + key
}

func (s *Storage) rulesKey(flagID string) string {
	return s.prefix + ":rules:" + flagID
}

func (s *Storage) overrideKey(flagID, userID string) string {
	return s.prefix + ":override:" + flagID + ":" + userID
}

// GetFlag implements flags.Storage. A tenant-scoped lookup falls back to the
// globally scoped flag when no organization-specific document exists.
func (s *Storage) GetFlag(ctx context.Context, key, orgID string) (*flags.Flag, error) {
	doc, err := s.client.Get(ctx, s.flagKey(key, orgID)).Bytes()
	if errors.Is(err, redis.Nil) && orgID != "" {
		doc, err = s.client.Get(ctx, s.flagKey(key, "")).Bytes()
	}
	if errors.Is(err, redis.Nil) {
		return nil, flags.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag %q: %w", key, err)
	}

	var f flags.Flag
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("decode flag %q: %w", key, err)
	}
	return &f, nil
}

// GetRulesForFlag implements flags.Storage. The stored document is already
// sorted by ascending priority; SaveRules guarantees it.
func (s *Storage) GetRulesForFlag(ctx context.Context, flagID string) ([]flags.Rule, error) {
	doc, err := s.client.Get(ctx, s.rulesKey(flagID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rules of flag %s: %w", flagID, err)
	}

	var rules []flags.Rule
	if err := json.Unmarshal(doc, &rules); err != nil {
		return nil, fmt.Errorf("decode rules of flag %s: %w", flagID, err)
	}
	return rules, nil
}

// GetOverride implements flags.Storage.
func (s *Storage) GetOverride(ctx context.Context, flagID, userID string) (*flags.Override, error) {
	doc, err := s.client.Get(ctx, s.overrideKey(flagID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, flags.ErrOverrideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get override of flag %s for user %s: %w", flagID, userID, err)
	}

	var o flags.Override
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("decode override of flag %s for user %s: %w", flagID, userID, err)
	}
	return &o, nil
}

// SaveFlag validates and stores a flag document under its scope key.
func (s *Storage) SaveFlag(ctx context.Context, f *flags.Flag) error {
	if err := flags.ValidateFlag(f); err != nil {
		return err
	}
	doc, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode flag %q: %w", f.Key, err)
	}
	if err := s.client.Set(ctx, s.flagKey(f.Key, f.OrganizationID), doc, 0).Err(); err != nil {
		return fmt.Errorf("set flag %q: %w", f.Key, err)
	}
	return nil
}

// SaveRules validates and stores the full rule set of a flag, sorted by
// ascending priority so reads never need to re-sort.
func (s *Storage) SaveRules(ctx context.Context, flagID string, rules []flags.Rule) error {
	sorted := slices.Clone(rules)
	for i := range sorted {
		sorted[i].FlagID = flagID
		if err := flags.ValidateRule(&sorted[i]); err != nil {
			return err
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	doc, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("encode rules of flag %s: %w", flagID, err)
	}
	if err := s.client.Set(ctx, s.rulesKey(flagID), doc, 0).Err(); err != nil {
		return fmt.Errorf("set rules of flag %s: %w", flagID, err)
	}
	return nil
}

// SaveOverride stores an override document. A non-nil expiry is mirrored into
// the key's TTL so expired overrides vanish from Redis on their own.
func (s *Storage) SaveOverride(ctx context.Context, o flags.Override) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode override of flag %s for user %s: %w", o.FlagID, o.UserID, err)
	}
	cmd := s.client.Set(ctx, s.overrideKey(o.FlagID, o.UserID), doc, 0)
	if o.ExpiresAt != nil {
		cmd = s.client.SetArgs(ctx, s.overrideKey(o.FlagID, o.UserID), doc, redis.SetArgs{ExpireAt: *o.ExpiresAt})
	}
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("set override of flag %s for user %s: %w", o.FlagID, o.UserID, err)
	}
	return nil
}

// DeleteFlag removes a flag document. Rules and overrides are keyed by flag
// ID and must be deleted separately when the ID is known.
func (s *Storage) DeleteFlag(ctx context.Context, key, orgID string) error {
	if err := s.client.Del(ctx, s.flagKey(key, orgID)).Err(); err != nil {
		return fmt.Errorf("delete flag %q: %w", key, err)
	}
	return nil
}

// DeleteOverride removes the override document for a (flag, user) pair.
func (s *Storage) DeleteOverride(ctx context.Context, flagID, userID string) error {
	if err := s.client.Del(ctx, s.overrideKey(flagID, userID)).Err(); err != nil {
		return fmt.Errorf("delete override of flag %s for user %s: %w", flagID, userID, err)
	}
	return nil
}
