package write

import (
	"context"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/chunker"
	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
)

func eventOps() sanitize.EntityOps[model.Event] {
	limits := sanitize.DefaultEventLimits()
	return sanitize.EntityOps[model.Event]{
		Sanitize: func(e *model.Event) { sanitize.SanitizeEvent(e, limits) },
		Verify:   func(e *model.Event) (cogerror.ResourceType, bool) { return sanitize.VerifyEvent(e, limits) },
		Key: func(e *model.Event) (any, bool) {
			if e.ExternalID == "" {
				return nil, false
			}
			return e.ExternalID, true
		},
	}
}

type eventResolver struct{ f *Facade }

func (r eventResolver) ResolveMissing(ctx context.Context, resource cogerror.ResourceType, partial []any) ([]any, error) {
	return resolveMissingGeneric(ctx, partial, func(ids []identity.Identity) ([]identity.Identity, error) {
		found, err := r.f.Resources.Events().RetrieveByIDs(ctx, ids, true)
		if err != nil {
			return nil, err
		}
		out := make([]identity.Identity, len(found))
		for i, e := range found {
			out[i] = e.Identity()
		}
		return out, nil
	})
}

// EnsureExistsEvents mirrors EnsureExistsAssets for events.
func (f *Facade) EnsureExistsEvents(ctx context.Context, items []*model.Event, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.Event, *model.Event] {
	chunks, result := sanitizeAndChunk("ensureExistsEvents", items, sanitationMode, eventOps(), f.Config.MaxItemsPerChunk)

	onExists := func(ctx context.Context, batch []*model.Event, cerr *cogerror.CogniteError[*model.Event]) ([]*model.Event, []*model.Event, bool) {
		var existingIDs []identity.Identity
		var rest []*model.Event
		for _, item := range batch {
			if cerr.HasValue(item.Identity()) {
				existingIDs = append(existingIDs, item.Identity())
			} else {
				rest = append(rest, item)
			}
		}
		existing, err := f.Resources.Events().RetrieveByIDs(ctx, existingIDs, true)
		if err != nil {
			return nil, batch, false
		}
		return existing, rest, true
	}

	out := runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*model.Event) *model.Result[*model.Event, *model.Event] {
		return retryLoop(ctx, f, "ensureExistsEvents", chunk, retryMode, f.Resources.Events().Create, onExists, cogerror.ResourceDataSetID, clean.EventKeys, eventResolver{f})
	})
	out.Merge(result)
	return out
}

// UpdateEvents applies partial updates to existing events.
func (f *Facade) UpdateEvents(ctx context.Context, updates []cdf.EventUpdate, retryMode RetryMode) *model.Result[*cdf.EventUpdate, *model.Event] {
	ptrs := make([]*cdf.EventUpdate, len(updates))
	for i := range updates {
		ptrs[i] = &updates[i]
	}
	chunks := chunker.ChunkSlice(ptrs, f.Config.MaxItemsPerChunk)

	call := func(ctx context.Context, batch []*cdf.EventUpdate) ([]*model.Event, *cdf.ResponseError) {
		plain := make([]cdf.EventUpdate, len(batch))
		for i, u := range batch {
			plain[i] = *u
		}
		return f.Resources.Events().Update(ctx, plain)
	}
	keyFn := func(u *cdf.EventUpdate, resource cogerror.ResourceType) ([]any, bool) {
		if resource == cogerror.ResourceID || resource == cogerror.ResourceExternalID {
			return []any{u.ID}, true
		}
		return nil, false
	}

	return runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*cdf.EventUpdate) *model.Result[*cdf.EventUpdate, *model.Event] {
		return retryLoop[cdf.EventUpdate](ctx, f, "updateEvents", chunk, retryMode, call, nil, cogerror.ResourceID, keyFn, nil)
	})
}

// DeleteEvents deletes events by identity.
func (f *Facade) DeleteEvents(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	return f.Resources.Events().Delete(ctx, ids, ignoreUnknown)
}
