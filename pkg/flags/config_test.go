package flags_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagkit/flagkit/pkg/flags"
)

func TestLoadConfig(t *testing.T) {
	// No t.Parallel: the subtests mutate the process environment.

	t.Run("Defaults", func(t *testing.T) {
		// t.Setenv registers the restore; unsetting afterwards leaves the
		// variable absent for the duration of the subtest.
		for _, key := range []string{"FLAGS_MULTI_TENANT", "FLAGS_DEBUG", "FLAGS_RECORDER_BUFFER"} {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}

		cfg, err := flags.LoadConfig()
		require.NoError(t, err)
		assert.False(t, cfg.MultiTenant)
		assert.False(t, cfg.Debug)
		assert.Equal(t, 1024, cfg.RecorderBuffer)
	})

	t.Run("FromEnvironment", func(t *testing.T) {
		t.Setenv("FLAGS_MULTI_TENANT", "true")
		t.Setenv("FLAGS_DEBUG", "true")
		t.Setenv("FLAGS_RECORDER_BUFFER", "256")

		cfg, err := flags.LoadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.MultiTenant)
		assert.True(t, cfg.Debug)
		assert.Equal(t, 256, cfg.RecorderBuffer)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		t.Setenv("FLAGS_RECORDER_BUFFER", "not-a-number")

		_, err := flags.LoadConfig()
		require.ErrorIs(t, err, flags.ErrParsingConfig)
	})
}
