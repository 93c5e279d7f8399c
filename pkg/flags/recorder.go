package flags

import (
	"context"
	"time"
)

// Record is one entry of the append-only evaluation log: the outcome of a
// single flag evaluation together with the identity it was evaluated for.
// Records are write-only from the engine's perspective.
type Record struct {
	ID             string    `json:"id"`
	FlagID         string    `json:"flag_id,omitempty"`
	FlagKey        string    `json:"flag_key"`
	UserID         string    `json:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Value          any       `json:"value,omitempty"`
	Variant        string    `json:"variant,omitempty"`
	Reason         Reason    `json:"reason"`
	Error          bool      `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder receives evaluation outcomes. Implementations must tolerate
// concurrent calls and should return quickly: the evaluator treats a slow or
// failing recorder as a telemetry problem, never as an evaluation failure.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// RecordWriter persists record batches. Implementations should optimize for
// bulk writes (SQL batch inserts, bulk APIs).
type RecordWriter interface {
	WriteRecords(ctx context.Context, recs []Record) error
}
