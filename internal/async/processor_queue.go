package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/ingest"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
)

// Processor runs one image. *pipeline.Pipeline satisfies it.
type Processor interface {
	Run(ctx context.Context, img llm.Image) pipeline.Result
	RunPath(ctx context.Context, path string) pipeline.Result
}

// ImageReader loads a queued file. *ingest.FSIngestor satisfies it.
type ImageReader interface {
	ReadImage(path string) (llm.Image, error)
}

// ProcessorQueue runs queued jobs on a fixed set of workers.
type ProcessorQueue struct {
	proc    Processor
	reader  ImageReader
	ledger  *ingest.Ledger
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithLedger skips images the ledger has already persisted and records every outcome.
func WithLedger(l *ingest.Ledger) Option {
	return func(q *ProcessorQueue) { q.ledger = l }
}

func WithImageReader(r ImageReader) Option {
	return func(q *ProcessorQueue) {
		if r != nil {
			q.reader = r
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	if q.reader == nil {
		q.reader = ingest.NewFSIngestor(logger)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithTraceID(ctx, job.TraceID)
	}
	logger := q.logger.With("worker_id", workerID, "path", job.Path, "trace_id", job.TraceID)
	logger.Debug("queue.job.start", "waited_ms", time.Since(job.SubmittedAt).Milliseconds())

	img, err := q.reader.ReadImage(job.Path)
	if err != nil {
		// the pipeline reports the unreadable file to its sinks
		res := q.proc.RunPath(ctx, job.Path)
		logger.Error("queue.job.unreadable", "run_id", res.RunID, "error", err)
		return
	}

	if q.ledger != nil && !job.Force {
		prev, seen, err := q.ledger.Seen(img.SHA256)
		if err != nil {
			logger.Warn("queue.ledger.lookup_failed", "error", err)
		} else if seen && prev.Complete {
			logger.Info("queue.job.duplicate", "sha256", img.SHA256, "run_id", prev.RunID)
			return
		}
	}

	res := q.proc.Run(ctx, img)
	if q.ledger != nil {
		err := q.ledger.Mark(ingest.Entry{
			SHA256:    img.SHA256,
			Path:      job.Path,
			Outcome:   res.Outcome,
			RunID:     res.RunID,
			Relation:  res.Relation,
			Persisted: res.Persisted,
			Complete:  res.Complete(),
		})
		if err != nil {
			logger.Warn("queue.ledger.mark_failed", "error", err)
		}
	}

	if res.Rejected() {
		logger.Warn("queue.job.rejected", "run_id", res.RunID, "reason", res.Reason)
		return
	}
	logger.Info("queue.job.done", "run_id", res.RunID, "persisted", res.Persisted, "failures", len(res.Failures))
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "path", job.Path, "force", job.Force)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
