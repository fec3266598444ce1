package write

import (
	"context"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/chunker"
	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
)

func timeSeriesOps() sanitize.EntityOps[model.TimeSeries] {
	limits := sanitize.DefaultTimeSeriesLimits()
	return sanitize.EntityOps[model.TimeSeries]{
		Sanitize: func(ts *model.TimeSeries) { sanitize.SanitizeTimeSeries(ts, limits) },
		Verify:   func(ts *model.TimeSeries) (cogerror.ResourceType, bool) { return sanitize.VerifyTimeSeries(ts, limits) },
		Key: func(ts *model.TimeSeries) (any, bool) {
			if ts.LegacyName != "" {
				return ts.LegacyName, true
			}
			if ts.ExternalID != "" {
				return ts.ExternalID, true
			}
			return nil, false
		},
	}
}

type timeSeriesResolver struct{ f *Facade }

func (r timeSeriesResolver) ResolveMissing(ctx context.Context, resource cogerror.ResourceType, partial []any) ([]any, error) {
	return resolveMissingGeneric(ctx, partial, func(ids []identity.Identity) ([]identity.Identity, error) {
		found, err := r.f.Resources.TimeSeries().RetrieveByIDs(ctx, ids, true)
		if err != nil {
			return nil, err
		}
		out := make([]identity.Identity, len(found))
		for i, ts := range found {
			out[i] = ts.Identity()
		}
		return out, nil
	})
}

// EnsureExistsTimeSeries mirrors EnsureExistsAssets for time series.
func (f *Facade) EnsureExistsTimeSeries(ctx context.Context, items []*model.TimeSeries, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.TimeSeries, *model.TimeSeries] {
	chunks, result := sanitizeAndChunk("ensureExistsTimeSeries", items, sanitationMode, timeSeriesOps(), f.Config.MaxItemsPerChunk)

	onExists := func(ctx context.Context, batch []*model.TimeSeries, cerr *cogerror.CogniteError[*model.TimeSeries]) ([]*model.TimeSeries, []*model.TimeSeries, bool) {
		var existingIDs []identity.Identity
		var rest []*model.TimeSeries
		for _, item := range batch {
			if cerr.HasValue(item.Identity()) {
				existingIDs = append(existingIDs, item.Identity())
			} else {
				rest = append(rest, item)
			}
		}
		existing, err := f.Resources.TimeSeries().RetrieveByIDs(ctx, existingIDs, true)
		if err != nil {
			return nil, batch, false
		}
		return existing, rest, true
	}

	out := runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*model.TimeSeries) *model.Result[*model.TimeSeries, *model.TimeSeries] {
		return retryLoop(ctx, f, "ensureExistsTimeSeries", chunk, retryMode, f.Resources.TimeSeries().Create, onExists, cogerror.ResourceAssetID, clean.TimeSeriesKeys, timeSeriesResolver{f})
	})
	out.Merge(result)
	return out
}

// UpsertOptions controls UpsertTimeSeries's create-vs-update decision
// (spec §4.6's "upsertTimeSeries").
type UpsertOptions struct {
	ReplaceMetadata bool
	SetNull         bool
}

// UpsertTimeSeries tries to create items; for ids that already exist, it
// builds a field-level diff against the fetched existing item and issues
// an update instead (spec §4.6). ReplaceMetadata/SetNull resolve Open
// Question #2 (see DESIGN.md): an update's empty Metadata with
// ReplaceMetadata=false is treated as "no opinion" and left untouched.
func (f *Facade) UpsertTimeSeries(ctx context.Context, items []*model.TimeSeries, opts UpsertOptions, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.TimeSeries, *model.TimeSeries] {
	created, sanitizeResult := sanitizeAndChunk("upsertTimeSeries", items, sanitationMode, timeSeriesOps(), f.Config.MaxItemsPerChunk)
	result := sanitizeResult

	var needUpdate []*model.TimeSeries
	var toCreate []*model.TimeSeries
	for _, chunk := range created {
		out, re := f.Resources.TimeSeries().Create(ctx, chunk)
		if re == nil {
			result.Results = append(result.Results, out...)
			continue
		}
		cerr := classifyTimeSeriesCreate(re)
		if cerr.Type != cogerror.ItemExists {
			cerr.Skipped = append(cerr.Skipped, chunk...)
			result.AddError(cerr)
			continue
		}
		for _, item := range chunk {
			if cerr.HasValue(item.Identity()) {
				needUpdate = append(needUpdate, item)
			} else {
				toCreate = append(toCreate, item)
			}
		}
	}

	if len(toCreate) > 0 {
		retried := runChunks(ctx, f, chunker.ChunkSlice(toCreate, f.Config.MaxItemsPerChunk), func(ctx context.Context, chunk []*model.TimeSeries) *model.Result[*model.TimeSeries, *model.TimeSeries] {
			return retryLoop[model.TimeSeries](ctx, f, "upsertTimeSeries.create", chunk, retryMode, f.Resources.TimeSeries().Create, nil, cogerror.ResourceAssetID, clean.TimeSeriesKeys, timeSeriesResolver{f})
		})
		result.Merge(retried)
	}

	if len(needUpdate) > 0 {
		ids := make([]identity.Identity, len(needUpdate))
		for i, item := range needUpdate {
			ids[i] = item.Identity()
		}
		existing, err := f.Resources.TimeSeries().RetrieveByIDs(ctx, ids, true)
		if err != nil {
			result.AddError(cogerror.New[*model.TimeSeries](cogerror.Fatal, "", err.Error()))
			return result
		}
		existingByID := make(map[identity.Identity]*model.TimeSeries, len(existing))
		for _, ts := range existing {
			existingByID[ts.Identity()] = ts
		}
		updates := make([]cdf.TimeSeriesUpdate, 0, len(needUpdate))
		for _, item := range needUpdate {
			cur, ok := existingByID[item.Identity()]
			if !ok {
				continue
			}
			updates = append(updates, diffTimeSeries(cur, item, opts))
		}
		updateResult := f.UpdateTimeSeries(ctx, updates, retryMode)
		for _, ts := range updateResult.Results {
			result.Results = append(result.Results, ts)
		}
		for _, e := range updateResult.Errors {
			result.AddError(convertUpdateErrToTimeSeries(e))
		}
	}

	return result
}

func classifyTimeSeriesCreate(re *cdf.ResponseError) *cogerror.CogniteError[*model.TimeSeries] {
	return classify.Classify[*model.TimeSeries](classify.ResponseError(*re), cogerror.ResourceAssetID)
}

// diffTimeSeries builds the minimal update for cur -> desired, honoring
// opts.ReplaceMetadata/SetNull (Open Question #2: empty new metadata with
// ReplaceMetadata=false leaves the existing metadata untouched).
func diffTimeSeries(cur, desired *model.TimeSeries, opts UpsertOptions) cdf.TimeSeriesUpdate {
	u := cdf.TimeSeriesUpdate{ID: cur.Identity()}
	if desired.Name != cur.Name && (desired.Name != "" || opts.SetNull) {
		name := desired.Name
		u.Name = &name
	}
	if desired.Description != cur.Description && (desired.Description != "" || opts.SetNull) {
		desc := desired.Description
		u.Description = &desc
	}
	if desired.Unit != cur.Unit && (desired.Unit != "" || opts.SetNull) {
		unit := desired.Unit
		u.Unit = &unit
	}
	if len(desired.Metadata) > 0 || opts.ReplaceMetadata {
		u.Metadata = desired.Metadata
		u.ReplaceMetadata = opts.ReplaceMetadata
	}
	if desired.AssetID != cur.AssetID && (desired.AssetID != 0 || opts.SetNull) {
		assetID := desired.AssetID
		u.AssetID = &assetID
	}
	return u
}

func convertUpdateErrToTimeSeries(e *cogerror.CogniteError[*cdf.TimeSeriesUpdate]) *cogerror.CogniteError[*model.TimeSeries] {
	out := cogerror.New[*model.TimeSeries](e.Type, e.Resource, e.Message)
	out.Status = e.Status
	out.Complete = e.Complete
	for v := range e.Values {
		out.AddValue(v)
	}
	return out
}

// UpdateTimeSeries applies partial updates to existing time series (spec
// §4.6's updateAssets/TimeSeries/Events family).
func (f *Facade) UpdateTimeSeries(ctx context.Context, updates []cdf.TimeSeriesUpdate, retryMode RetryMode) *model.Result[*cdf.TimeSeriesUpdate, *model.TimeSeries] {
	ptrs := make([]*cdf.TimeSeriesUpdate, len(updates))
	for i := range updates {
		ptrs[i] = &updates[i]
	}
	chunks := chunker.ChunkSlice(ptrs, f.Config.MaxItemsPerChunk)

	call := func(ctx context.Context, batch []*cdf.TimeSeriesUpdate) ([]*model.TimeSeries, *cdf.ResponseError) {
		plain := make([]cdf.TimeSeriesUpdate, len(batch))
		for i, u := range batch {
			plain[i] = *u
		}
		return f.Resources.TimeSeries().Update(ctx, plain)
	}
	keyFn := func(u *cdf.TimeSeriesUpdate, resource cogerror.ResourceType) ([]any, bool) {
		if resource == cogerror.ResourceID || resource == cogerror.ResourceExternalID {
			return []any{u.ID}, true
		}
		return nil, false
	}

	return runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*cdf.TimeSeriesUpdate) *model.Result[*cdf.TimeSeriesUpdate, *model.TimeSeries] {
		return retryLoop[cdf.TimeSeriesUpdate](ctx, f, "updateTimeSeries", chunk, retryMode, call, nil, cogerror.ResourceID, keyFn, nil)
	})
}

// DeleteTimeSeries deletes time series by identity.
func (f *Facade) DeleteTimeSeries(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	return f.Resources.TimeSeries().Delete(ctx, ids, ignoreUnknown)
}

// GetExtractedRanges fetches, for each external id, the first and last
// timestamp the cloud currently holds (spec §4.6). A series absent
// entirely resolves to model.TimeRange{Empty: true}.
func (f *Facade) GetExtractedRanges(ctx context.Context, externalIDs []string) map[string]model.TimeRange {
	out := make(map[string]model.TimeRange, len(externalIDs))
	queries := make([]cdf.LatestBefore, len(externalIDs))
	for i, extID := range externalIDs {
		queries[i] = cdf.LatestBefore{ID: identity.ByExternalID(extID)}
	}
	latest, err := f.Resources.DataPoints().ListLatest(ctx, queries)
	if err != nil {
		for _, extID := range externalIDs {
			out[extID] = model.TimeRange{Empty: true}
		}
		return out
	}
	for _, extID := range externalIDs {
		id := identity.ByExternalID(extID)
		last, ok := latest[id]
		if !ok {
			out[extID] = model.TimeRange{Empty: true}
			continue
		}
		first := last.Timestamp
		points, err := f.Resources.DataPoints().ListRange(ctx, id, time.UnixMilli(0), last.Timestamp, 1)
		if err == nil && len(points) > 0 {
			first = points[0].Timestamp
		}
		out[extID] = model.TimeRange{First: first, Last: last.Timestamp}
	}
	return out
}
