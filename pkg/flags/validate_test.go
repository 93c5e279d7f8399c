package flags_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagkit/flagkit/pkg/flags"
)

func TestValidateFlag(t *testing.T) {
	t.Parallel()

	valid := func() *flags.Flag {
		return &flags.Flag{Key: "beta", Type: flags.TypeBoolean, Enabled: true, DefaultValue: false}
	}

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, flags.ValidateFlag(valid()))
	})

	t.Run("Nil", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, flags.ValidateFlag(nil), flags.ErrInvalidFlag)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		t.Parallel()
		f := valid()
		f.Key = ""
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)
	})

	t.Run("UnknownType", func(t *testing.T) {
		t.Parallel()
		f := valid()
		f.Type = "toggle"
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)
	})

	t.Run("RolloutPercentageRange", func(t *testing.T) {
		t.Parallel()
		for _, pct := range []int{-1, 101} {
			f := valid()
			f.RolloutPercentage = intPtr(pct)
			assert.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag, "percentage %d", pct)
		}
		for _, pct := range []int{0, 50, 100} {
			f := valid()
			f.RolloutPercentage = intPtr(pct)
			assert.NoError(t, flags.ValidateFlag(f), "percentage %d", pct)
		}
	})

	t.Run("VariantWeights", func(t *testing.T) {
		t.Parallel()

		f := valid()
		f.Variants = []flags.Variant{
			{Key: "a", Weight: floatPtr(60)},
			{Key: "b", Weight: floatPtr(40)},
		}
		require.NoError(t, flags.ValidateFlag(f))

		// All-or-none: a partial weighting is invalid.
		f.Variants[1].Weight = nil
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)

		// Weights must sum to 100 within tolerance.
		f.Variants = []flags.Variant{
			{Key: "a", Weight: floatPtr(60)},
			{Key: "b", Weight: floatPtr(39)},
		}
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)

		f.Variants = []flags.Variant{
			{Key: "a", Weight: floatPtr(60.005)},
			{Key: "b", Weight: floatPtr(40)},
		}
		require.NoError(t, flags.ValidateFlag(f))

		// Unweighted variants are always fine.
		f.Variants = []flags.Variant{{Key: "a"}, {Key: "b"}}
		require.NoError(t, flags.ValidateFlag(f))

		f.Variants = []flags.Variant{{Key: ""}}
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)

		f.Variants = []flags.Variant{{Key: "a", Weight: floatPtr(-1)}, {Key: "b", Weight: floatPtr(101)}}
		require.ErrorIs(t, flags.ValidateFlag(f), flags.ErrInvalidFlag)
	})
}

func TestValidateRule(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, flags.ValidateRule(&flags.Rule{Priority: 0, Enabled: true}))
		require.NoError(t, flags.ValidateRule(&flags.Rule{Priority: -1000}))
		require.NoError(t, flags.ValidateRule(&flags.Rule{Priority: 1000}))
	})

	t.Run("Nil", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, flags.ValidateRule(nil), flags.ErrInvalidRule)
	})

	t.Run("PriorityRange", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, flags.ValidateRule(&flags.Rule{Priority: -1001}), flags.ErrInvalidRule)
		require.ErrorIs(t, flags.ValidateRule(&flags.Rule{Priority: 1001}), flags.ErrInvalidRule)
	})

	t.Run("PercentageRange", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, flags.ValidateRule(&flags.Rule{Percentage: intPtr(-1)}), flags.ErrInvalidRule)
		require.ErrorIs(t, flags.ValidateRule(&flags.Rule{Percentage: intPtr(101)}), flags.ErrInvalidRule)
		require.NoError(t, flags.ValidateRule(&flags.Rule{Percentage: intPtr(100)}))
	})
}
