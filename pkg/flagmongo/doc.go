// Package flagmongo backs the flag evaluation engine with MongoDB using the
// official v2 driver. It provides a flags.Storage implementation over the
// feature_flags, flag_rules, and flag_overrides collections, and a
// flags.RecordWriter that bulk-inserts evaluation records into
// flag_evaluations.
//
// Key features:
//   - Environment-driven configuration eliminates deployment complexity
//   - Built-in retry logic handles MongoDB Atlas transient failures gracefully
//   - Connection pool defaults optimized for typical flag-read workloads
//   - Health check integration for Kubernetes/Docker orchestration
//
// # Usage
//
//	cfg, err := env.ParseAs[flagmongo.Config]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := flagmongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	storage, err := flagmongo.NewStorage(db)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evaluator, err := flags.NewEvaluator(storage)
//
// # Encoding
//
// Free-form values (flag defaults, rule values, condition trees) round-trip
// through their JSON encoding rather than native BSON so every storage
// backend shares one canonical representation of the condition language.
//
// # Error Handling
//
// Connection failures are wrapped in package sentinels compatible with
// errors.Is(). Missing documents map onto the engine's
// flags.ErrFlagNotFound and flags.ErrOverrideNotFound.
package flagmongo
