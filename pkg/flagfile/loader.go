package flagfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flagkit/flagkit/pkg/flags"
)

var (
	ErrReadFile    = errors.New("failed to read flag file")
	ErrParseFile   = errors.New("failed to parse flag file")
	ErrInvalidFile = errors.New("invalid flag file")
)

// fileDoc is the YAML shape of a flag set. Conditions and free-form values
// stay untyped here and round-trip through JSON into the engine's condition
// tree, so the file format and the storage backends share one encoding.
type fileDoc struct {
	Flags []flagDoc `yaml:"flags"`
}

type flagDoc struct {
	Key       string        `yaml:"key"`
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Enabled   bool          `yaml:"enabled"`
	Default   any           `yaml:"default"`
	Rollout   *int          `yaml:"rollout"`
	Org       string        `yaml:"organization"`
	Variants  []variantDoc  `yaml:"variants"`
	Rules     []ruleDoc     `yaml:"rules"`
	Overrides []overrideDoc `yaml:"overrides"`
}

type variantDoc struct {
	Key    string   `yaml:"key"`
	Weight *float64 `yaml:"weight"`
}

type ruleDoc struct {
	Name       string `yaml:"name"`
	Priority   int    `yaml:"priority"`
	Conditions any    `yaml:"conditions"`
	Value      any    `yaml:"value"`
	Percentage *int   `yaml:"percentage"`
	Disabled   bool   `yaml:"disabled"`
}

type overrideDoc struct {
	User      string     `yaml:"user"`
	Value     any        `yaml:"value"`
	Variant   string     `yaml:"variant"`
	Disabled  bool       `yaml:"disabled"`
	ExpiresAt *time.Time `yaml:"expires_at"`
}

// Load reads a YAML flag set from disk and materializes it as an in-memory
// storage ready to back an evaluator.
func Load(path string) (*flags.MemoryStorage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a YAML flag set and materializes it as an in-memory storage.
// Flags, rules, and overrides are validated on the way in; the first invalid
// entry fails the whole parse.
func Parse(r io.Reader) (*flags.MemoryStorage, error) {
	var doc fileDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Join(ErrParseFile, err)
	}

	storage, err := flags.NewMemoryStorage()
	if err != nil {
		return nil, err
	}

	for i := range doc.Flags {
		if err := addFlag(storage, &doc.Flags[i]); err != nil {
			return nil, err
		}
	}
	return storage, nil
}

func addFlag(storage *flags.MemoryStorage, doc *flagDoc) error {
	f := &flags.Flag{
		Key:               doc.Key,
		Name:              doc.Name,
		Type:              flags.FlagType(doc.Type),
		Enabled:           doc.Enabled,
		DefaultValue:      normalize(doc.Default),
		RolloutPercentage: doc.Rollout,
		OrganizationID:    doc.Org,
	}
	for _, v := range doc.Variants {
		f.Variants = append(f.Variants, flags.Variant{Key: v.Key, Weight: v.Weight})
	}

	ctx := context.Background()
	if err := storage.CreateFlag(ctx, f); err != nil {
		return errors.Join(ErrInvalidFile, fmt.Errorf("flag %q: %w", doc.Key, err))
	}

	if len(doc.Rules) > 0 {
		rules := make([]flags.Rule, 0, len(doc.Rules))
		for _, rd := range doc.Rules {
			conditions, err := decodeConditions(rd.Conditions)
			if err != nil {
				return errors.Join(ErrInvalidFile, fmt.Errorf("flag %q, rule %q: %w", doc.Key, rd.Name, err))
			}
			rules = append(rules, flags.Rule{
				Name:       rd.Name,
				Priority:   rd.Priority,
				Conditions: conditions,
				Value:      normalize(rd.Value),
				Percentage: rd.Percentage,
				Enabled:    !rd.Disabled,
			})
		}
		if err := storage.SetRules(ctx, f.ID, rules); err != nil {
			return errors.Join(ErrInvalidFile, fmt.Errorf("flag %q: %w", doc.Key, err))
		}
	}

	for _, od := range doc.Overrides {
		o := flags.Override{
			FlagID:    f.ID,
			UserID:    od.User,
			Value:     normalize(od.Value),
			Variant:   od.Variant,
			Enabled:   !od.Disabled,
			ExpiresAt: od.ExpiresAt,
		}
		if err := storage.SetOverride(ctx, o); err != nil {
			return errors.Join(ErrInvalidFile, fmt.Errorf("flag %q, override for %q: %w", doc.Key, od.User, err))
		}
	}
	return nil
}

// decodeConditions converts the untyped YAML condition mapping into the
// engine's condition tree via its JSON encoding.
func decodeConditions(raw any) (*flags.Conditions, error) {
	if raw == nil {
		return nil, nil
	}
	buf, err := json.Marshal(normalize(raw))
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	var conditions flags.Conditions
	if err := json.Unmarshal(buf, &conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return &conditions, nil
}

// normalize rewrites YAML's map[any]any mappings into map[string]any so the
// values survive a JSON round-trip and compare like API-sourced attributes.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
