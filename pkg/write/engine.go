package write

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/chunker"
	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/throttle"
	"github.com/google/uuid"
)

// callFn issues one cloud call for a batch and reports either the
// produced items or a classifiable failure. Both AssetsClient.Create and
// AssetsClient.Update (closed over their update-list argument) satisfy
// this shape, which is why updateWithRetry can reuse the same retry core
// as createWithRetry.
type callFn[T any] func(ctx context.Context, batch []*T) ([]*T, *cdf.ResponseError)

// onItemExists lets ensureExists special-case the ItemExists class: drop
// the duplicates from the batch, fetch the pre-existing items, and report
// whether it could make progress (false means the caller should fall
// through to ordinary cleaning).
type onItemExists[T any] func(ctx context.Context, batch []*T, err *cogerror.CogniteError[*T]) (created []*T, remaining []*T, handled bool)

// runChunks fans chunks out through the façade's throttler, merging
// per-chunk results into one. A Fatal error in any chunk cancels the rest
// (throttle.RunThrottled's fail-fast semantics); non-fatal per-chunk
// errors are recorded in the result and never cancel siblings.
func runChunks[T any](ctx context.Context, f *Facade, chunks [][]*T, process func(context.Context, []*T) *model.Result[*T, *T]) *model.Result[*T, *T] {
	result := &model.Result[*T, *T]{}
	var mu sync.Mutex

	thunks := make([]func(context.Context) error, len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		thunks[i] = func(ctx context.Context) error {
			r := process(ctx, chunk)
			mu.Lock()
			result.Merge(r)
			mu.Unlock()
			return r.Throw()
		}
	}
	_ = throttle.RunThrottled(ctx, thunks, f.Config.Parallelism)
	return result
}

// retryLoop implements spec §4.5/§4.6's classify→clean→retry cycle for one
// chunk, bounded by clean.Bound(len(batch), ConfiguredMaxRetries).
func retryLoop[T any](
	ctx context.Context,
	f *Facade,
	opName string,
	batch []*T,
	retryMode RetryMode,
	call callFn[T],
	onExists onItemExists[T],
	defaultMissingResource cogerror.ResourceType,
	keyFn clean.KeyFunc[T],
	resolver clean.Resolver,
) *model.Result[*T, *T] {
	result := &model.Result[*T, *T]{}
	remaining := batch
	maxIter := clean.Bound(len(batch), f.Config.ConfiguredMaxRetries)
	correlationID := uuid.NewString()
	f.Log.Debug().Str("op", opName).Str("correlation_id", correlationID).Int("batch_size", len(batch)).Msg("retry loop starting")

	for iter := 0; iter < maxIter && len(remaining) > 0; iter++ {
		out, re := call(ctx, remaining)
		if re == nil {
			result.Results = append(result.Results, out...)
			metrics.FacadeOperationsTotal.WithLabelValues(opName, "ok").Inc()
			return result
		}

		cerr := classify.Classify[*T](classify.ResponseError(*re), defaultMissingResource)
		metrics.ClassifiedErrorsTotal.WithLabelValues(string(cerr.Type), string(cerr.Resource)).Inc()

		if cerr.Type == cogerror.ItemExists && onExists != nil {
			created, rest, handled := onExists(ctx, remaining, cerr)
			if handled {
				result.Results = append(result.Results, created...)
				remaining = rest
				if len(remaining) == 0 {
					metrics.FacadeOperationsTotal.WithLabelValues(opName, "ok").Inc()
					return result
				}
				continue
			}
		}

		if retryMode == RetryNone {
			cerr.Skipped = append(cerr.Skipped, remaining...)
			result.AddError(cerr)
			metrics.FacadeOperationsTotal.WithLabelValues(opName, "error").Inc()
			return result
		}

		if cerr.IsFatal() {
			cerr.Skipped = append(cerr.Skipped, remaining...)
			result.AddError(cerr)
			metrics.FacadeOperationsTotal.WithLabelValues(opName, "fatal").Inc()
			return result
		}

		if cerr.IsTransient() {
			select {
			case <-ctx.Done():
				cerr.Skipped = append(cerr.Skipped, remaining...)
				result.AddError(cerr)
				return result
			case <-time.After(throttle.Backoff(iter)):
			}
			continue
		}

		if retryMode == RetryOnFatal {
			cerr.Skipped = append(cerr.Skipped, remaining...)
			result.AddError(cerr)
			metrics.FacadeOperationsTotal.WithLabelValues(opName, "error").Inc()
			return result
		}

		kept, removed := clean.Clean(ctx, cerr, remaining, keyFn, resolver)
		metrics.CleanerItemsSkipped.WithLabelValues(string(cerr.Resource)).Add(float64(removed))
		result.AddError(cerr)
		if removed == 0 {
			metrics.FacadeOperationsTotal.WithLabelValues(opName, "error").Inc()
			return result
		}
		remaining = kept
		metrics.CleanerIterations.Observe(float64(iter + 1))
	}

	if len(remaining) > 0 {
		exhausted := cogerror.New[*T](cogerror.Fatal, "", "retry budget exhausted before batch cleared")
		exhausted.Skipped = append(exhausted.Skipped, remaining...)
		result.AddError(exhausted)
		metrics.FacadeOperationsTotal.WithLabelValues(opName, "exhausted").Inc()
		f.Log.Error().Str("op", opName).Str("correlation_id", correlationID).Int("remaining", len(remaining)).Msg("retry budget exhausted before batch cleared")
	}
	return result
}

// sanitizeAndChunk runs CleanRequest then splits the cleaned batch into
// cloud-sized chunks, returning both the chunks and a result seeded with
// the sanitation errors (spec §4.3, §4.1).
func sanitizeAndChunk[T any](opName string, items []*T, mode sanitize.Mode, ops sanitize.EntityOps[T], maxItems int) ([][]*T, *model.Result[*T, *T]) {
	cleaned, sanitizeErrs := sanitize.CleanRequest(items, mode, ops)
	result := &model.Result[*T, *T]{}
	for _, e := range sanitizeErrs {
		result.AddError(e)
		metrics.SanitizerItemsDropped.WithLabelValues(opName, string(e.Type)).Add(float64(len(e.Skipped)))
	}
	chunks := chunker.ChunkSlice(cleaned, maxItems)
	metrics.ChunksProduced.WithLabelValues(opName).Add(float64(len(chunks)))
	return chunks, result
}
