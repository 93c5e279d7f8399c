// Package flagpg backs the flag evaluation engine with PostgreSQL using the
// pgx/v5 driver. It provides a flags.Storage implementation over the
// feature_flags, flag_rules, and flag_overrides tables, and a
// flags.RecordWriter that batch-inserts evaluation records into
// flag_evaluations.
//
// # Architecture
//
// The package exposes three cooperating building blocks:
//
//   - Config – a declarative struct whose fields are populated from
//     environment variables via github.com/caarlos0/env. It controls
//     connection pool limits and startup retry behaviour.
//
//   - Connect – opens a *pgxpool.Pool based on Config, retrying with
//     backoff until the database becomes available.
//
//   - Storage / RecordWriter – the read path for flag definitions and the
//     write path for the evaluation log, both wrapping the same pool.
//
// Schema management is deliberately out of scope: schema.sql documents the
// expected tables and callers apply it with their own migration tooling.
//
// # Usage
//
//	cfg, err := env.ParseAs[flagpg.Config]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pool, err := flagpg.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	storage, err := flagpg.NewStorage(pool)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evaluator, err := flags.NewEvaluator(storage)
//
// To persist the evaluation log, wrap the pool-backed writer in the async
// recorder so inserts never block the evaluation hot path:
//
//	writer, _ := flagpg.NewRecordWriter(pool)
//	recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{})
//	defer closeRecorder(context.Background())
//
//	evaluator, err := flags.NewEvaluator(storage, flags.WithRecorder(recorder))
//
// # Multi-tenancy
//
// Flags are scoped by organization_id, with the empty string marking the
// globally scoped variant. GetFlag prefers the organization's flag and falls
// back to the global one in a single query.
package flagpg
