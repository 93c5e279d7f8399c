package flags

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type scopeKey struct {
	org string
	key string
}

// MemoryStorage is an in-memory implementation of the Storage interface with
// a small administrative CRUD surface. It is used by the test suites, the
// YAML flag-set loader, and deployments simple enough to hold their flag
// state in process.
type MemoryStorage struct {
	mu        sync.RWMutex
	flags     map[scopeKey]*Flag
	byID      map[string]*Flag
	rules     map[string][]Rule
	overrides map[string]map[string]*Override
}

// NewMemoryStorage creates an in-memory storage, optionally seeded with
// initial flags. Seed flags are validated and receive generated IDs and
// timestamps when missing.
func NewMemoryStorage(initial ...*Flag) (*MemoryStorage, error) {
	s := &MemoryStorage{
		flags:     make(map[scopeKey]*Flag),
		byID:      make(map[string]*Flag),
		rules:     make(map[string][]Rule),
		overrides: make(map[string]map[string]*Override),
	}
	for _, f := range initial {
		if f == nil {
			continue
		}
		if err := s.CreateFlag(context.Background(), f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetFlag implements Storage. A tenant-scoped lookup falls back to the
// globally scoped flag when no organization-specific one exists.
func (s *MemoryStorage) GetFlag(ctx context.Context, key, orgID string) (*Flag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if orgID != "" {
		if f, ok := s.flags[scopeKey{org: orgID, key: key}]; ok {
			return copyFlag(f), nil
		}
	}
	if f, ok := s.flags[scopeKey{key: key}]; ok {
		return copyFlag(f), nil
	}
	return nil, ErrFlagNotFound
}

// GetRulesForFlag implements Storage, returning rules in ascending priority order.
func (s *MemoryStorage) GetRulesForFlag(ctx context.Context, flagID string) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.rules[flagID]), nil
}

// GetOverride implements Storage.
func (s *MemoryStorage) GetOverride(ctx context.Context, flagID, userID string) (*Override, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if byUser, ok := s.overrides[flagID]; ok {
		if o, ok := byUser[userID]; ok {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOverrideNotFound
}

// CreateFlag validates and stores a new flag, assigning an ID and timestamps
// when missing. The key must be unique within its organization scope.
func (s *MemoryStorage) CreateFlag(ctx context.Context, f *Flag) error {
	if err := ValidateFlag(f); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := scopeKey{org: f.OrganizationID, key: f.Key}
	if _, exists := s.flags[sk]; exists {
		return errors.Join(ErrInvalidFlag, errors.New("flag already exists"))
	}

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}

	stored := copyFlag(f)
	s.flags[sk] = stored
	s.byID[stored.ID] = stored
	return nil
}

// UpdateFlag replaces an existing flag's definition, preserving its ID and
// creation time.
func (s *MemoryStorage) UpdateFlag(ctx context.Context, f *Flag) error {
	if err := ValidateFlag(f); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := scopeKey{org: f.OrganizationID, key: f.Key}
	existing, ok := s.flags[sk]
	if !ok {
		return ErrFlagNotFound
	}

	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now()

	stored := copyFlag(f)
	s.flags[sk] = stored
	s.byID[stored.ID] = stored
	return nil
}

// DeleteFlag removes a flag along with its rules and overrides.
func (s *MemoryStorage) DeleteFlag(ctx context.Context, key, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk := scopeKey{org: orgID, key: key}
	f, ok := s.flags[sk]
	if !ok {
		return ErrFlagNotFound
	}
	delete(s.flags, sk)
	delete(s.byID, f.ID)
	delete(s.rules, f.ID)
	delete(s.overrides, f.ID)
	return nil
}

// SetRules replaces the rule set of a flag. Rules are validated, assigned IDs
// when missing, and stored sorted by ascending priority so reads never need
// to re-sort.
func (s *MemoryStorage) SetRules(ctx context.Context, flagID string, rules []Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[flagID]; !ok {
		return ErrFlagNotFound
	}

	stored := slices.Clone(rules)
	for i := range stored {
		stored[i].FlagID = flagID
		if err := ValidateRule(&stored[i]); err != nil {
			return err
		}
		if stored[i].ID == "" {
			stored[i].ID = uuid.New().String()
		}
	}
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Priority < stored[j].Priority
	})
	s.rules[flagID] = stored
	return nil
}

// SetOverride stores the override for its (flag, user) pair, replacing any
// previous one. At most one override per pair is kept.
func (s *MemoryStorage) SetOverride(ctx context.Context, o Override) error {
	if o.FlagID == "" || o.UserID == "" {
		return errors.Join(ErrInvalidFlag, errors.New("override requires flag and user IDs"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[o.FlagID]; !ok {
		return ErrFlagNotFound
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if s.overrides[o.FlagID] == nil {
		s.overrides[o.FlagID] = make(map[string]*Override)
	}
	s.overrides[o.FlagID][o.UserID] = &o
	return nil
}

// DeleteOverride removes the override for a (flag, user) pair if present.
func (s *MemoryStorage) DeleteOverride(ctx context.Context, flagID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byUser, ok := s.overrides[flagID]; ok {
		delete(byUser, userID)
	}
}

// ListFlags returns copies of all stored flags in no particular order.
func (s *MemoryStorage) ListFlags(ctx context.Context) []*Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Flag, 0, len(s.flags))
	for _, f := range s.flags {
		out = append(out, copyFlag(f))
	}
	return out
}

// copyFlag produces a snapshot detached from the stored flag so callers can
// never mutate storage state through a returned pointer.
func copyFlag(f *Flag) *Flag {
	copied := *f
	if f.Variants != nil {
		copied.Variants = slices.Clone(f.Variants)
	}
	if f.RolloutPercentage != nil {
		pct := *f.RolloutPercentage
		copied.RolloutPercentage = &pct
	}
	return &copied
}
