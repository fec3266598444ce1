// Package queue implements the time- and size-triggered background upload
// queues in front of the write façade, with on-disk overflow buffering for
// when flushes fail.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline run statuses a queue can report (mirrors cdf.RunStatus's values
// without pkg/queue depending on pkg/cdf).
const (
	RunStatusFailure = "failure"
	RunStatusSeen    = "seen"
)

// PipelineReporter posts an extraction-pipeline run heartbeat. Satisfied by
// a thin adapter over write.Facade.CreateExtractionPipelineRun (see
// write.PipelineRunReporter) so pkg/queue has no dependency on pkg/write or
// pkg/cdf, the same decoupling pkg/clean.Resolver uses for its resolver
// callback.
type PipelineReporter interface {
	ReportRun(ctx context.Context, status, message string) error
}

// UploadResult is the outcome of one flush: how many items were accepted
// and which, if any, were rejected and should not be retried.
type UploadResult[T any] struct {
	Uploaded int
	Failed   []T
	Err      error
}

// Codec frames a single buffered item to and from bytes for the on-disk
// overflow file. The outer length-prefix is added by the queue itself;
// Encode/Decode only handle the payload.
type Codec[T any] interface {
	Encode(item T) ([]byte, error)
	Decode(frame []byte) (T, error)
}

// Config configures one upload queue instance.
type Config[T any] struct {
	// Name labels this queue's metrics and logs.
	Name string
	// UploadInterval is the time-based flush trigger.
	UploadInterval time.Duration
	// MaxSize is the size-based flush trigger; 0 disables it.
	MaxSize int
	// BufferPath, if non-empty, is where unflushed batches overflow to
	// when a flush fails. Empty means failed items are simply dropped
	// (after Callback observes them).
	BufferPath string
	// DisposalGrace bounds how long a final flush on Stop/ctx-cancel may
	// take before falling back to writing straight to the buffer file.
	DisposalGrace time.Duration
	// Upload performs one flush against the cloud.
	Upload func(ctx context.Context, items []T) UploadResult[T]
	// Callback, if set, is invoked with the result of every flush attempt
	// that had at least one item to send.
	Callback func(UploadResult[T])
	// Codec frames items for BufferPath. Required whenever BufferPath is set.
	Codec Codec[T]
	Log   zerolog.Logger
	// Pipeline, if set, receives a "failure" run once a consecutive run of
	// failed flushes reaches FailureStreakThreshold, and a "seen" run when
	// the next flush after such a streak succeeds.
	Pipeline PipelineReporter
	// FailureStreakThreshold is the number of consecutive failed/partial
	// flushes before Pipeline is notified. 0 disables pipeline reporting.
	FailureStreakThreshold int
}

// Queue is one resource kind's upload queue (spec §4.7): enqueue is
// non-blocking, a background loop drains on whichever of time/size/trigger
// fires first, and failed flushes overflow to an on-disk buffer file.
type Queue[T any] struct {
	cfg Config[T]

	mu      sync.Mutex
	pending []T

	triggerCh chan chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	// failureStreak is only touched from flush, which the run loop calls
	// serially, so it needs no locking of its own.
	failureStreak int
}

// New constructs a queue from cfg. Call Start to begin its flush loop.
func New[T any](cfg Config[T]) *Queue[T] {
	return &Queue[T]{
		cfg:       cfg,
		triggerCh: make(chan chan struct{}),
	}
}

// Enqueue appends item to the in-memory pending list. Non-blocking and
// safe for concurrent use. If the pending list has just reached MaxSize,
// a flush is requested asynchronously.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.pending = append(q.pending, item)
	size := len(q.pending)
	q.mu.Unlock()

	metrics.QueueBufferedItems.WithLabelValues(q.cfg.Name).Set(float64(size))

	if q.cfg.MaxSize > 0 && size >= q.cfg.MaxSize {
		select {
		case q.triggerCh <- nil:
		default:
		}
	}
}

// Start begins the background flush loop. ctx cancellation stops the loop
// after a final flush attempt (see Config.DisposalGrace).
func (q *Queue[T]) Start(ctx context.Context) {
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	go q.run(ctx)
}

func (q *Queue[T]) run(ctx context.Context) {
	defer close(q.doneCh)

	interval := q.cfg.UploadInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.flush(ctx)
		case reply := <-q.triggerCh:
			q.flush(ctx)
			if reply != nil {
				close(reply)
			}
		case <-ctx.Done():
			q.dispose()
			return
		case <-q.stopCh:
			q.dispose()
			return
		}
	}
}

// Trigger forces an immediate flush and awaits its completion (spec §4.7).
func (q *Queue[T]) Trigger() {
	reply := make(chan struct{})
	q.triggerCh <- reply
	<-reply
}

// Stop disposes the queue: flushes once, awaits the loop, then releases
// (spec §4.7's disposal contract).
func (q *Queue[T]) Stop() {
	close(q.stopCh)
	<-q.doneCh
}

func (q *Queue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.pending
	q.pending = nil
	metrics.QueueBufferedItems.WithLabelValues(q.cfg.Name).Set(0)
	return items
}

// flush drains the in-memory pending list, prepends whatever is sitting in
// the on-disk buffer, and calls Upload once with the combined batch. A
// partial or total failure re-serializes the failed items to the buffer
// file; full success truncates it.
func (q *Queue[T]) flush(ctx context.Context) {
	buffered := q.readBuffer()
	pending := q.drain()
	items := make([]T, 0, len(buffered)+len(pending))
	items = append(items, buffered...)
	items = append(items, pending...)
	if len(items) == 0 {
		return
	}

	batchID := uuid.NewString()
	q.cfg.Log.Debug().Str("queue", q.cfg.Name).Str("batch_id", batchID).Int("items", len(items)).Msg("flushing batch")
	result := q.cfg.Upload(ctx, items)

	if len(result.Failed) > 0 {
		q.writeBuffer(result.Failed)
		metrics.QueueFlushesTotal.WithLabelValues(q.cfg.Name, "partial").Inc()
		q.reportFlushOutcome(ctx, true)
	} else if result.Err != nil {
		q.writeBuffer(items)
		metrics.QueueFlushesTotal.WithLabelValues(q.cfg.Name, "error").Inc()
		q.reportFlushOutcome(ctx, true)
	} else {
		q.clearBuffer()
		metrics.QueueFlushesTotal.WithLabelValues(q.cfg.Name, "ok").Inc()
		q.reportFlushOutcome(ctx, false)
	}

	if q.cfg.Callback != nil {
		q.cfg.Callback(result)
	}
}

// reportFlushOutcome tracks the consecutive-failure streak and notifies
// Pipeline once it crosses FailureStreakThreshold, then again with a "seen"
// run once a flush finally succeeds. Disabled entirely when Pipeline or
// FailureStreakThreshold is unset.
func (q *Queue[T]) reportFlushOutcome(ctx context.Context, failed bool) {
	if q.cfg.Pipeline == nil || q.cfg.FailureStreakThreshold <= 0 {
		return
	}

	if failed {
		q.failureStreak++
		if q.failureStreak == q.cfg.FailureStreakThreshold {
			msg := fmt.Sprintf("%d consecutive flush failures", q.failureStreak)
			if err := q.cfg.Pipeline.ReportRun(ctx, RunStatusFailure, msg); err != nil {
				q.cfg.Log.Warn().Str("queue", q.cfg.Name).Err(err).Msg("failed to report pipeline failure run")
			}
		}
		return
	}

	if q.failureStreak >= q.cfg.FailureStreakThreshold {
		if err := q.cfg.Pipeline.ReportRun(ctx, RunStatusSeen, "flush recovered"); err != nil {
			q.cfg.Log.Warn().Str("queue", q.cfg.Name).Err(err).Msg("failed to report pipeline recovery run")
		}
	}
	q.failureStreak = 0
}

// dispose implements spec §5's cancellation contract: attempt one final
// flush bounded by DisposalGrace; if no grace is configured, skip the
// network round trip entirely and write everything straight to the buffer
// file instead.
func (q *Queue[T]) dispose() {
	if q.cfg.DisposalGrace > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.DisposalGrace)
		defer cancel()
		q.flush(ctx)
		return
	}

	buffered := q.readBuffer()
	pending := q.drain()
	items := make([]T, 0, len(buffered)+len(pending))
	items = append(items, buffered...)
	items = append(items, pending...)
	if len(items) > 0 {
		q.writeBuffer(items)
	}
}
