package flagmongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/flagkit/flagkit/pkg/flags"
)

// Storage implements flags.Storage on MongoDB. Flags, rules, and overrides
// live in the feature_flags, flag_rules, and flag_overrides collections; the
// globally scoped variant of a flag uses an empty organization_id.
type Storage struct {
	flags     *mongo.Collection
	rules     *mongo.Collection
	overrides *mongo.Collection
}

// NewStorage wraps a connected flag database.
func NewStorage(db *mongo.Database) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &Storage{
		flags:     db.Collection("feature_flags"),
		rules:     db.Collection("flag_rules"),
		overrides: db.Collection("flag_overrides"),
	}, nil
}

// flagDoc mirrors flags.Flag for BSON storage. Conditions and free-form
// values round-trip through their JSON form so the nested condition tree
// keeps a single canonical encoding across storage backends.
type flagDoc struct {
	ID                string          `bson:"_id"`
	Key               string          `bson:"key"`
	Name              string          `bson:"name,omitempty"`
	Type              string          `bson:"type"`
	Enabled           bool            `bson:"enabled"`
	DefaultValue      json.RawMessage `bson:"default_value,omitempty"`
	RolloutPercentage *int            `bson:"rollout_percentage,omitempty"`
	Variants          []variantDoc    `bson:"variants,omitempty"`
	OrganizationID    string          `bson:"organization_id"`
	CreatedAt         time.Time       `bson:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at"`
}

type variantDoc struct {
	Key    string   `bson:"key"`
	Weight *float64 `bson:"weight,omitempty"`
}

type ruleDoc struct {
	ID         string          `bson:"_id"`
	FlagID     string          `bson:"flag_id"`
	Name       string          `bson:"name,omitempty"`
	Priority   int             `bson:"priority"`
	Conditions json.RawMessage `bson:"conditions,omitempty"`
	Value      json.RawMessage `bson:"value,omitempty"`
	Percentage *int            `bson:"percentage,omitempty"`
	Enabled    bool            `bson:"enabled"`
}

type overrideDoc struct {
	ID        string          `bson:"_id"`
	FlagID    string          `bson:"flag_id"`
	UserID    string          `bson:"user_id"`
	Value     json.RawMessage `bson:"value,omitempty"`
	Variant   string          `bson:"variant,omitempty"`
	Enabled   bool            `bson:"enabled"`
	ExpiresAt *time.Time      `bson:"expires_at,omitempty"`
}

// GetFlag implements flags.Storage. A tenant-scoped lookup prefers the
// organization's flag and falls back to the globally scoped one; sorting
// descending on organization_id puts the scoped document first.
func (s *Storage) GetFlag(ctx context.Context, key, orgID string) (*flags.Flag, error) {
	filter := bson.M{"key": key, "organization_id": bson.M{"$in": bson.A{"", orgID}}}
	opts := options.FindOne().SetSort(bson.D{{Key: "organization_id", Value: -1}})

	var doc flagDoc
	err := s.flags.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, flags.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find flag %q: %w", key, err)
	}
	return doc.toFlag()
}

// GetRulesForFlag implements flags.Storage, returning rules in ascending
// priority order.
func (s *Storage) GetRulesForFlag(ctx context.Context, flagID string) ([]flags.Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}})
	cursor, err := s.rules.Find(ctx, bson.M{"flag_id": flagID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find rules of flag %s: %w", flagID, err)
	}
	defer cursor.Close(ctx)

	var rules []flags.Rule
	for cursor.Next(ctx) {
		var doc ruleDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode rule of flag %s: %w", flagID, err)
		}
		rule, err := doc.toRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules of flag %s: %w", flagID, err)
	}
	return rules, nil
}

// GetOverride implements flags.Storage.
func (s *Storage) GetOverride(ctx context.Context, flagID, userID string) (*flags.Override, error) {
	var doc overrideDoc
	err := s.overrides.FindOne(ctx, bson.M{"flag_id": flagID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, flags.ErrOverrideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find override of flag %s for user %s: %w", flagID, userID, err)
	}
	return doc.toOverride()
}

func (d *flagDoc) toFlag() (*flags.Flag, error) {
	f := &flags.Flag{
		ID:                d.ID,
		Key:               d.Key,
		Name:              d.Name,
		Type:              flags.FlagType(d.Type),
		Enabled:           d.Enabled,
		RolloutPercentage: d.RolloutPercentage,
		OrganizationID:    d.OrganizationID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if len(d.DefaultValue) > 0 {
		if err := json.Unmarshal(d.DefaultValue, &f.DefaultValue); err != nil {
			return nil, fmt.Errorf("decode default value of flag %q: %w", d.Key, err)
		}
	}
	for _, v := range d.Variants {
		f.Variants = append(f.Variants, flags.Variant{Key: v.Key, Weight: v.Weight})
	}
	return f, nil
}

func (d *ruleDoc) toRule() (flags.Rule, error) {
	r := flags.Rule{
		ID:         d.ID,
		FlagID:     d.FlagID,
		Name:       d.Name,
		Priority:   d.Priority,
		Percentage: d.Percentage,
		Enabled:    d.Enabled,
	}
	if len(d.Conditions) > 0 {
		if err := json.Unmarshal(d.Conditions, &r.Conditions); err != nil {
			return flags.Rule{}, fmt.Errorf("decode conditions of rule %s: %w", d.ID, err)
		}
	}
	if len(d.Value) > 0 {
		if err := json.Unmarshal(d.Value, &r.Value); err != nil {
			return flags.Rule{}, fmt.Errorf("decode value of rule %s: %w", d.ID, err)
		}
	}
	return r, nil
}

func (d *overrideDoc) toOverride() (*flags.Override, error) {
	o := &flags.Override{
		ID:        d.ID,
		FlagID:    d.FlagID,
		UserID:    d.UserID,
		Variant:   d.Variant,
		Enabled:   d.Enabled,
		ExpiresAt: d.ExpiresAt,
	}
	if len(d.Value) > 0 {
		if err := json.Unmarshal(d.Value, &o.Value); err != nil {
			return nil, fmt.Errorf("decode value of override %s: %w", d.ID, err)
		}
	}
	return o, nil
}

// RecordWriter persists evaluation records into the flag_evaluations
// collection via bulk inserts. It implements flags.RecordWriter and is meant
// to sit behind a flags.AsyncRecorder.
type RecordWriter struct {
	evaluations *mongo.Collection
}

// NewRecordWriter wraps a connected flag database.
func NewRecordWriter(db *mongo.Database) (*RecordWriter, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &RecordWriter{evaluations: db.Collection("flag_evaluations")}, nil
}

type recordDoc struct {
	ID             string          `bson:"_id"`
	FlagID         string          `bson:"flag_id,omitempty"`
	FlagKey        string          `bson:"flag_key"`
	UserID         string          `bson:"user_id,omitempty"`
	OrganizationID string          `bson:"organization_id,omitempty"`
	Value          json.RawMessage `bson:"value,omitempty"`
	Variant        string          `bson:"variant,omitempty"`
	Reason         string          `bson:"reason"`
	Error          bool            `bson:"error,omitempty"`
	CreatedAt      time.Time       `bson:"created_at"`
}

// WriteRecords implements flags.RecordWriter.
func (w *RecordWriter) WriteRecords(ctx context.Context, recs []flags.Record) error {
	if len(recs) == 0 {
		return nil
	}

	docs := make([]any, 0, len(recs))
	for _, rec := range recs {
		value, err := json.Marshal(rec.Value)
		if err != nil {
			return fmt.Errorf("encode value of record %s: %w", rec.ID, err)
		}
		docs = append(docs, recordDoc{
			ID:             rec.ID,
			FlagID:         rec.FlagID,
			FlagKey:        rec.FlagKey,
			UserID:         rec.UserID,
			OrganizationID: rec.OrganizationID,
			Value:          value,
			Variant:        rec.Variant,
			Reason:         string(rec.Reason),
			Error:          rec.Error,
			CreatedAt:      rec.CreatedAt,
		})
	}
	if _, err := w.evaluations.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert evaluation records: %w", err)
	}
	return nil
}
