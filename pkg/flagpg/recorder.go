package flagpg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagkit/flagkit/pkg/flags"
)

// RecordWriter persists evaluation records into the flag_evaluations table.
// It implements flags.RecordWriter and is meant to sit behind a
// flags.AsyncRecorder so inserts are batched off the evaluation hot path.
type RecordWriter struct {
	pool *pgxpool.Pool
}

// NewRecordWriter wraps an established connection pool.
func NewRecordWriter(pool *pgxpool.Pool) (*RecordWriter, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	return &RecordWriter{pool: pool}, nil
}

const insertRecordQuery = `
INSERT INTO flag_evaluations
	(id, flag_id, flag_key, user_id, organization_id, value, variant, reason, error, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)`

// WriteRecords implements flags.RecordWriter using a single pipelined batch
// per call.
func (w *RecordWriter) WriteRecords(ctx context.Context, recs []flags.Record) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		value, err := json.Marshal(rec.Value)
		if err != nil {
			return fmt.Errorf("encode value of record %s: %w", rec.ID, err)
		}
		batch.Queue(insertRecordQuery,
			rec.ID, rec.FlagID, rec.FlagKey, rec.UserID, rec.OrganizationID,
			value, rec.Variant, string(rec.Reason), rec.Error, rec.CreatedAt)
	}

	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range recs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert evaluation records: %w", err)
		}
	}
	return results.Close()
}
