package flags_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagkit/flagkit/pkg/flags"
)

// collectingWriter gathers flushed record batches for inspection.
type collectingWriter struct {
	mu      sync.Mutex
	records []flags.Record
	blockCh chan struct{}
}

func (w *collectingWriter) WriteRecords(ctx context.Context, recs []flags.Record) error {
	if w.blockCh != nil {
		select {
		case <-w.blockCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, recs...)
	return nil
}

func (w *collectingWriter) all() []flags.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]flags.Record, len(w.records))
	copy(out, w.records)
	return out
}

func TestAsyncRecorder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("FlushesOnClose", func(t *testing.T) {
		t.Parallel()
		writer := &collectingWriter{}
		recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{})

		for it := 0; it < 5; it++ {
			require.NoError(t, recorder.Record(ctx, flags.Record{FlagKey: "beta", Reason: flags.ReasonDefault}))
		}
		require.NoError(t, closeRecorder(ctx))

		records := writer.all()
		require.Len(t, records, 5)
		for _, rec := range records {
			assert.NotEmpty(t, rec.ID)
			assert.False(t, rec.CreatedAt.IsZero())
			assert.Equal(t, "beta", rec.FlagKey)
		}
	})

	t.Run("FlushesOnBatchSize", func(t *testing.T) {
		t.Parallel()
		writer := &collectingWriter{}
		recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{
			BatchSize:    2,
			BatchTimeout: time.Hour, // only the size threshold can trigger
		})
		t.Cleanup(func() { _ = closeRecorder(context.Background()) })

		require.NoError(t, recorder.Record(ctx, flags.Record{FlagKey: "a"}))
		require.NoError(t, recorder.Record(ctx, flags.Record{FlagKey: "b"}))

		require.Eventually(t, func() bool {
			return len(writer.all()) == 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("RejectsWhenClosed", func(t *testing.T) {
		t.Parallel()
		writer := &collectingWriter{}
		recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{})
		require.NoError(t, closeRecorder(ctx))

		err := recorder.Record(ctx, flags.Record{FlagKey: "beta"})
		require.ErrorIs(t, err, flags.ErrRecorderClosed)
	})

	t.Run("DropsWhenBufferFull", func(t *testing.T) {
		t.Parallel()
		blocked := make(chan struct{})
		writer := &collectingWriter{blockCh: blocked}
		recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{
			BufferSize: 1,
			BatchSize:  1,
		})
		t.Cleanup(func() {
			close(blocked)
			_ = closeRecorder(context.Background())
		})

		// Saturate the worker and the single-slot buffer, then overflow.
		var sawFull bool
		for it := 0; it < 50; it++ {
			if err := recorder.Record(ctx, flags.Record{FlagKey: "x"}); err != nil {
				require.ErrorIs(t, err, flags.ErrRecorderFull)
				sawFull = true
				break
			}
		}
		assert.True(t, sawFull, "expected a full buffer to drop records")
	})

	t.Run("CloseHonorsContext", func(t *testing.T) {
		t.Parallel()
		blocked := make(chan struct{})
		writer := &collectingWriter{blockCh: blocked}
		recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{
			BatchSize:    1,
			WriteTimeout: time.Minute,
		})
		t.Cleanup(func() { close(blocked) })

		require.NoError(t, recorder.Record(ctx, flags.Record{FlagKey: "x"}))

		shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, closeRecorder(shortCtx), context.DeadlineExceeded)
	})
}

func TestEvaluatorRecording(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	writer := &collectingWriter{}
	recorder, closeRecorder := flags.NewAsyncRecorder(writer, flags.AsyncRecorderOptions{})

	f := &flags.Flag{Key: "beta", Type: flags.TypeBoolean, Enabled: true, DefaultValue: true}
	storage, err := flags.NewMemoryStorage(f)
	require.NoError(t, err)
	evaluator, err := flags.NewEvaluator(storage, flags.WithRecorder(recorder))
	require.NoError(t, err)

	res := evaluator.Evaluate(ctx, "beta", flags.EvaluationContext{UserID: "u1", OrganizationID: "org-1"})
	assert.Equal(t, flags.ReasonDefault, res.Reason)
	_ = evaluator.Evaluate(ctx, "ghost", flags.EvaluationContext{UserID: "u1"})

	require.NoError(t, closeRecorder(ctx))

	records := writer.all()
	require.Len(t, records, 2)

	byKey := map[string]flags.Record{}
	for _, rec := range records {
		byKey[rec.FlagKey] = rec
	}
	assert.Equal(t, flags.ReasonDefault, byKey["beta"].Reason)
	assert.Equal(t, f.ID, byKey["beta"].FlagID)
	assert.Equal(t, "u1", byKey["beta"].UserID)
	assert.Equal(t, "org-1", byKey["beta"].OrganizationID)
	assert.Equal(t, flags.ReasonNotFound, byKey["ghost"].Reason)
	assert.Empty(t, byKey["ghost"].FlagID)
}
