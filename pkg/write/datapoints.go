package write

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/chunker"
	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/throttle"
)

// InsertDataPoints sanitizes, two-dimensionally chunks (spec §4.1's
// N_dp_series/N_dp_points bin-packing), throttles, and classify/cleans a
// batch of per-series data points (spec §4.6). Per-series value order is
// preserved within a chunk; the returned slice lists every range the
// cloud never accepted, grouped by series.
func (f *Facade) InsertDataPoints(ctx context.Context, points map[identity.Identity][]model.DataPoint, sanitationMode sanitize.Mode, nanReplacement *float64, retryMode RetryMode) []model.DataPointInsertError {
	limits := sanitize.DefaultDataPointLimits()
	sanitized := make(map[identity.Identity][]model.DataPoint, len(points))
	var skipped []model.DataPointInsertError

	for id, series := range points {
		kept := make([]model.DataPoint, 0, len(series))
		var dropped []model.DataPoint
		for _, dp := range series {
			if sanitationMode == sanitize.None {
				kept = append(kept, dp)
				continue
			}
			if !sanitize.SanitizeDataPoint(&dp, limits, sanitationMode, nanReplacement) {
				dropped = append(dropped, dp)
				continue
			}
			if _, bad := sanitize.VerifyDataPoint(&dp, limits); bad {
				dropped = append(dropped, dp)
				continue
			}
			kept = append(kept, dp)
		}
		if len(kept) > 0 {
			sanitized[id] = kept
		}
		if len(dropped) > 0 {
			skipped = append(skipped, model.DataPointInsertError{ID: id, DataPoints: dropped})
			metrics.SanitizerItemsDropped.WithLabelValues("insertDataPoints", string(cogerror.SanitationFailed)).Add(float64(len(dropped)))
		}
	}

	chunks := chunker.ChunkMap(sanitized, f.Config.MaxPointsPerInsertChunk, f.Config.MaxSeriesPerInsertChunk)
	metrics.ChunksProduced.WithLabelValues("insertDataPoints").Add(float64(len(chunks)))

	var mu sync.Mutex
	thunks := make([]func(context.Context) error, len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		thunks[i] = func(ctx context.Context) error {
			res := f.insertDataPointChunk(ctx, chunk, retryMode)
			mu.Lock()
			skipped = append(skipped, res...)
			mu.Unlock()
			return nil
		}
	}
	_ = throttle.RunThrottled(ctx, thunks, f.Config.Parallelism)
	return skipped
}

// insertDataPointChunk implements the classify/clean/retry cycle for one
// already-chunked map, bounded by clean.Bound(pointCount, ConfiguredMaxRetries).
func (f *Facade) insertDataPointChunk(ctx context.Context, chunk map[identity.Identity][]model.DataPoint, retryMode RetryMode) []model.DataPointInsertError {
	remaining := chunk
	n := 0
	for _, series := range chunk {
		n += len(series)
	}
	maxIter := clean.Bound(n, f.Config.ConfiguredMaxRetries)
	var skipped []model.DataPointInsertError

	for iter := 0; iter < maxIter && len(remaining) > 0; iter++ {
		re := f.Resources.DataPoints().Insert(ctx, remaining)
		if re == nil {
			metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "ok").Inc()
			return skipped
		}

		cerr := classify.Classify[*model.DataPoint](classify.ResponseError(*re), cogerror.ResourceDataPointValue)
		metrics.ClassifiedErrorsTotal.WithLabelValues(string(cerr.Type), string(cerr.Resource)).Inc()

		if retryMode == RetryNone {
			skipped = append(skipped, flattenSeries(remaining)...)
			metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "error").Inc()
			return skipped
		}

		if cerr.IsFatal() {
			skipped = append(skipped, flattenSeries(remaining)...)
			metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "fatal").Inc()
			return skipped
		}

		if cerr.IsTransient() {
			select {
			case <-ctx.Done():
				skipped = append(skipped, flattenSeries(remaining)...)
				return skipped
			case <-time.After(throttle.Backoff(iter)):
			}
			continue
		}

		if cerr.Type == cogerror.MismatchedType && retryMode != RetryOnFatal {
			// The classifier can rarely name which series mismatched
			// (spec §4.4: "per-item assignment may require a probe"); when
			// cerr.Values is empty every series in the chunk is a
			// candidate and gets probed point by point.
			next := make(map[identity.Identity][]model.DataPoint, len(remaining))
			for id, series := range remaining {
				key := clean.IdentityKeys(id)[0]
				if len(cerr.Values) > 0 && !cerr.HasValue(key) {
					next[id] = series
					continue
				}
				inserted, bad := f.probeSeriesPoints(ctx, id, series)
				if len(bad) > 0 {
					skipped = append(skipped, model.DataPointInsertError{ID: id, DataPoints: bad})
				}
				_ = inserted // already committed one at a time by probeSeriesPoints
			}
			remaining = next
			metrics.CleanerItemsSkipped.WithLabelValues(string(cogerror.ResourceDataPointValue)).Add(float64(len(cerr.Values)))
			continue
		}

		if retryMode == RetryOnFatal {
			skipped = append(skipped, flattenSeries(remaining)...)
			metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "error").Inc()
			return skipped
		}

		kept, removedSeries := clean.DataPointSeriesKeys(remaining, cerr.Values)
		if len(removedSeries) == 0 {
			skipped = append(skipped, flattenSeries(remaining)...)
			metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "error").Inc()
			return skipped
		}
		for id, series := range removedSeries {
			skipped = append(skipped, model.DataPointInsertError{ID: id, DataPoints: series})
		}
		remaining = kept
		metrics.CleanerIterations.Observe(float64(iter + 1))
	}

	if len(remaining) > 0 {
		skipped = append(skipped, flattenSeries(remaining)...)
		metrics.FacadeOperationsTotal.WithLabelValues("insertDataPoints", "exhausted").Inc()
	}
	return skipped
}

// DeleteDataPointRanges is a thin pass-through to the data point range
// deletion endpoint (spec §6's DataPoints.delete(ranges)).
func (f *Facade) DeleteDataPointRanges(ctx context.Context, ranges []model.DataPointRange) error {
	return f.Resources.DataPoints().Delete(ctx, ranges)
}

// probeSeriesPoints retries an offending series one point at a time,
// pinpointing exactly which points the cloud rejects (spec §4.4: "per-item
// assignment may require a probe"). Points that insert cleanly are
// committed by the probe call itself; only the rejected ones return.
func (f *Facade) probeSeriesPoints(ctx context.Context, id identity.Identity, series []model.DataPoint) (inserted, skipped []model.DataPoint) {
	for _, dp := range series {
		re := f.Resources.DataPoints().Insert(ctx, map[identity.Identity][]model.DataPoint{id: {dp}})
		if re == nil {
			inserted = append(inserted, dp)
			continue
		}
		skipped = append(skipped, dp)
	}
	return inserted, skipped
}

func flattenSeries(m map[identity.Identity][]model.DataPoint) []model.DataPointInsertError {
	out := make([]model.DataPointInsertError, 0, len(m))
	for id, series := range m {
		out = append(out, model.DataPointInsertError{ID: id, DataPoints: series})
	}
	return out
}

// InsertDataPointsCreateMissing behaves like InsertDataPoints, except that
// on ItemMissing it invokes buildTS to create a placeholder time series for
// every absent id (numeric by default, string if the series' first point
// is string-typed) and retries the insert once the series exist (spec
// §4.6).
func (f *Facade) InsertDataPointsCreateMissing(ctx context.Context, points map[identity.Identity][]model.DataPoint, sanitationMode sanitize.Mode, nanReplacement *float64, retryMode RetryMode, buildTS func(id identity.Identity, isString bool) *model.TimeSeries) []model.DataPointInsertError {
	probe := f.Resources.DataPoints().Insert(ctx, points)
	if probe != nil {
		cerr := classify.Classify[*model.DataPoint](classify.ResponseError(*probe), cogerror.ResourceDataPointValue)
		if cerr.Type == cogerror.ItemMissing {
			var missing []*model.TimeSeries
			for v := range cerr.Values {
				id, ok := v.(identity.Identity)
				if !ok {
					continue
				}
				series := points[id]
				isString := len(series) > 0 && series[0].IsString
				missing = append(missing, buildTS(id, isString))
			}
			if len(missing) > 0 {
				f.EnsureExistsTimeSeries(ctx, missing, RetryOnError, sanitationMode)
			}
		}
	}
	return f.InsertDataPoints(ctx, points, sanitationMode, nanReplacement, retryMode)
}
