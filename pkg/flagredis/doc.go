// Package flagredis backs the flag evaluation engine with Redis using the
// go-redis client. It provides a flags.Storage implementation that stores
// flags, rule sets, and overrides as JSON documents, each readable in a
// single GET round-trip.
//
// The package wraps the go-redis client and adds:
//
//   - A robust Connect which retries the connection using the supplied
//     configuration.
//   - A Storage type implementing the evaluation engine's read interface
//     plus a small administrative write surface.
//   - A health-check helper for liveness / readiness probes.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	cfg, err := env.ParseAs[flagredis.Config]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := flagredis.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	storage, err := flagredis.NewStorage(client, cfg.KeyPrefix)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evaluator, err := flags.NewEvaluator(storage)
//
// # Expiry
//
// Overrides with an expiry get a matching Redis TTL, so expired overrides
// disappear from the store on their own. The evaluator additionally checks
// expiry at evaluation time, which covers the window between logical and
// physical expiration.
//
// # Errors
//
// The package defines sentinel errors (e.g. ErrRedisNotReady) that wrap the
// underlying go-redis errors using errors.Join. Missing documents map onto
// the engine's flags.ErrFlagNotFound and flags.ErrOverrideNotFound.
package flagredis
