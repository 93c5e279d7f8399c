package flags

import "strings"

// EvaluationContext carries the caller-supplied facts used to personalize a
// decision: an optional user identity, an optional tenant scope, and an
// arbitrary nested attribute bag addressable with dot-notation paths.
//
// A context without a UserID is anonymous. Anonymous contexts never match
// overrides and share a single rollout bucket.
type EvaluationContext struct {
	UserID         string         `json:"user_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// Anonymous reports whether the context lacks a user identity.
func (c EvaluationContext) Anonymous() bool {
	return c.UserID == ""
}

// Attribute resolves a dot-notation path against the attribute bag, e.g.
// "user.plan" descends into a nested "user" map and returns its "plan" value.
// The second return value reports whether the path resolved; condition
// operators treat an unresolved path as a non-match.
//
// UserID and OrganizationID are addressable as "userId" and "organizationId"
// unless the attribute bag shadows those keys.
func (c EvaluationContext) Attribute(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	if v, ok := lookupPath(c.Attributes, path); ok {
		return v, true
	}
	switch path {
	case "userId":
		if c.UserID != "" {
			return c.UserID, true
		}
	case "organizationId":
		if c.OrganizationID != "" {
			return c.OrganizationID, true
		}
	}
	return nil, false
}

// lookupPath descends through nested string-keyed maps. Descent stops with a
// miss when an intermediate value is not a map; no reflection is involved.
func lookupPath(bag map[string]any, path string) (any, bool) {
	if bag == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = bag
	for i, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		current = v
	}
	return nil, false
}
