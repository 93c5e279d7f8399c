package flags

import "time"

// FlagType identifies the value type a flag resolves to.
type FlagType string

const (
	TypeBoolean FlagType = "boolean"
	TypeString  FlagType = "string"
	TypeNumber  FlagType = "number"
	TypeJSON    FlagType = "json"
)

// Variant is one of several named alternative values a flag can resolve to,
// used for A/B testing. Weights must either be set on every variant of a flag
// (summing to 100) or on none, in which case variants are drawn uniformly.
type Variant struct {
	Key    string   `json:"key"`
	Weight *float64 `json:"weight,omitempty"`
}

// Flag is a named, typed configuration toggle. The evaluation engine treats
// flags as read-only snapshots: they are created and edited by administrative
// tooling through the storage collaborator.
type Flag struct {
	ID                string    `json:"id"`
	Key               string    `json:"key"`
	Name              string    `json:"name,omitempty"`
	Type              FlagType  `json:"type"`
	Enabled           bool      `json:"enabled"`
	DefaultValue      any       `json:"default_value,omitempty"`
	RolloutPercentage *int      `json:"rollout_percentage,omitempty"`
	Variants          []Variant `json:"variants,omitempty"`
	OrganizationID    string    `json:"organization_id,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitzero"`
	UpdatedAt         time.Time `json:"updated_at,omitzero"`
}

// Rule is an admin-defined targeting condition plus an override value.
// Rules for a flag form an ordered sequence by ascending Priority; the first
// enabled rule whose conditions match wins.
type Rule struct {
	ID         string      `json:"id"`
	FlagID     string      `json:"flag_id"`
	Name       string      `json:"name,omitempty"`
	Priority   int         `json:"priority"`
	Conditions *Conditions `json:"conditions,omitempty"`
	Value      any         `json:"value,omitempty"`
	Percentage *int        `json:"percentage,omitempty"`
	Enabled    bool        `json:"enabled"`
}

// Override pins an explicit value for one (flag, user) pair. An active
// override supersedes all other flag logic except the disabled state.
type Override struct {
	ID        string     `json:"id"`
	FlagID    string     `json:"flag_id"`
	UserID    string     `json:"user_id"`
	Value     any        `json:"value,omitempty"`
	Variant   string     `json:"variant,omitempty"`
	Enabled   bool       `json:"enabled"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the override applies at the given instant.
func (o *Override) Active(now time.Time) bool {
	if o == nil || !o.Enabled {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}
