package flags_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagkit/flagkit/pkg/flags"
)

func TestEvaluationContextAttribute(t *testing.T) {
	t.Parallel()

	ectx := flags.EvaluationContext{
		UserID:         "u1",
		OrganizationID: "org-7",
		Attributes: map[string]any{
			"plan": "pro",
			"user": map[string]any{
				"profile": map[string]any{
					"lang": "de",
				},
				"tags": []any{"beta"},
			},
		},
	}

	t.Run("TopLevel", func(t *testing.T) {
		t.Parallel()
		v, ok := ectx.Attribute("plan")
		assert.True(t, ok)
		assert.Equal(t, "pro", v)
	})

	t.Run("NestedPath", func(t *testing.T) {
		t.Parallel()
		v, ok := ectx.Attribute("user.profile.lang")
		assert.True(t, ok)
		assert.Equal(t, "de", v)
	})

	t.Run("MissingPath", func(t *testing.T) {
		t.Parallel()
		_, ok := ectx.Attribute("user.profile.theme")
		assert.False(t, ok)
		_, ok = ectx.Attribute("nope")
		assert.False(t, ok)
		_, ok = ectx.Attribute("")
		assert.False(t, ok)
	})

	t.Run("DescentStopsAtNonMap", func(t *testing.T) {
		t.Parallel()
		// "user.tags" is a list; descending further misses instead of panicking.
		_, ok := ectx.Attribute("user.tags.0")
		assert.False(t, ok)
		_, ok = ectx.Attribute("plan.sub")
		assert.False(t, ok)
	})

	t.Run("IdentityFallbacks", func(t *testing.T) {
		t.Parallel()
		v, ok := ectx.Attribute("userId")
		assert.True(t, ok)
		assert.Equal(t, "u1", v)

		v, ok = ectx.Attribute("organizationId")
		assert.True(t, ok)
		assert.Equal(t, "org-7", v)

		_, ok = flags.EvaluationContext{}.Attribute("userId")
		assert.False(t, ok)
	})

	t.Run("BagShadowsIdentity", func(t *testing.T) {
		t.Parallel()
		shadowed := flags.EvaluationContext{
			UserID:     "real",
			Attributes: map[string]any{"userId": "impostor"},
		}
		v, ok := shadowed.Attribute("userId")
		assert.True(t, ok)
		assert.Equal(t, "impostor", v)
	})
}

func TestEvaluationContextAnonymous(t *testing.T) {
	t.Parallel()

	assert.True(t, flags.EvaluationContext{}.Anonymous())
	assert.False(t, flags.EvaluationContext{UserID: "u1"}.Anonymous())
}
