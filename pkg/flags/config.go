package flags

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries the engine's process-level settings.
type Config struct {
	// MultiTenant scopes flag lookups by the evaluation context's
	// organization ID.
	MultiTenant bool `env:"FLAGS_MULTI_TENANT" envDefault:"false"`

	// Debug attaches cascade traces to every result. Intended for
	// development environments; it never changes decisions.
	Debug bool `env:"FLAGS_DEBUG" envDefault:"false"`

	// RecorderBuffer sizes the async evaluation recorder queue.
	RecorderBuffer int `env:"FLAGS_RECORDER_BUFFER" envDefault:"1024"`
}

var dotenvOnce sync.Once

// LoadConfig reads the engine configuration from environment variables,
// loading a .env file first when one is present.
func LoadConfig() (Config, error) {
	dotenvOnce.Do(func() {
		// The .env file is optional; a missing one is not an error.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
