package flags

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AsyncRecorderOptions controls the batching and buffering behavior of the
// async recorder: the tradeoff between memory use, flush latency, and write
// efficiency.
type AsyncRecorderOptions struct {
	BufferSize   int           // Max records queued in memory before new ones are dropped
	BatchSize    int           // Target records per flush
	BatchTimeout time.Duration // Max wait before flushing a partial batch
	WriteTimeout time.Duration // Per-flush writer timeout
	Logger       *slog.Logger  // Sink for flush failures; discards when nil
}

// AsyncRecorder buffers evaluation records and flushes them to a RecordWriter
// from a background goroutine, so recording never blocks the evaluation hot
// path. A full buffer drops the record and reports ErrRecorderFull rather
// than stalling the caller; the evaluation log is best-effort by contract.
type AsyncRecorder struct {
	writer    RecordWriter
	records   chan Record
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	opts      AsyncRecorderOptions
	log       *slog.Logger
}

// NewAsyncRecorder creates an async recorder around the given writer and
// starts its background flusher. The returned close function flushes
// buffered records and stops the flusher; it honors the context deadline.
func NewAsyncRecorder(w RecordWriter, opts AsyncRecorderOptions) (*AsyncRecorder, func(context.Context) error) {
	if w == nil {
		panic("flags: record writer cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &AsyncRecorder{
		writer:  w,
		records: make(chan Record, opts.BufferSize),
		done:    make(chan struct{}),
		opts:    opts,
		log:     log,
	}

	r.wg.Add(1)
	go r.worker()

	return r, r.Close
}

// Record implements Recorder. It assigns an ID and enqueues the record
// without blocking; the record is dropped when the recorder is closed or its
// buffer is full.
func (r *AsyncRecorder) Record(ctx context.Context, rec Record) error {
	select {
	case <-r.done:
		return ErrRecorderClosed
	default:
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	select {
	case r.records <- rec:
		return nil
	default:
		return ErrRecorderFull
	}
}

func (r *AsyncRecorder) worker() {
	defer r.wg.Done()

	batch := make([]Record, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.BatchTimeout)
	defer ticker.Stop()

	// Flushes run on a background context: an evaluation caller's deadline
	// must not cascade into the log write.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
		if err := r.writer.WriteRecords(ctx, batch); err != nil {
			r.log.Warn("evaluation record flush failed", "records", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			// Drain whatever was enqueued before shutdown, then flush once.
			for {
				select {
				case rec := <-r.records:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the recorder after flushing buffered records. Records arriving
// after Close are rejected with ErrRecorderClosed.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
