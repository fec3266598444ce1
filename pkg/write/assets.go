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

func assetOps() sanitize.EntityOps[model.Asset] {
	limits := sanitize.DefaultAssetLimits()
	return sanitize.EntityOps[model.Asset]{
		Sanitize: func(a *model.Asset) { sanitize.SanitizeAsset(a, limits) },
		Verify:   func(a *model.Asset) (cogerror.ResourceType, bool) { return sanitize.VerifyAsset(a, limits) },
		Key: func(a *model.Asset) (any, bool) {
			if a.ExternalID == "" {
				return nil, false
			}
			return a.ExternalID, true
		},
	}
}

// EnsureExistsAssets is the idempotent-create operation for assets (spec
// §4.6): tries to create the batch; on ItemExists, removes the duplicates
// and returns the union of newly created and pre-existing items.
func (f *Facade) EnsureExistsAssets(ctx context.Context, items []*model.Asset, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.Asset, *model.Asset] {
	chunks, result := sanitizeAndChunk("ensureExistsAssets", items, sanitationMode, assetOps(), f.Config.MaxItemsPerChunk)

	onExists := func(ctx context.Context, batch []*model.Asset, cerr *cogerror.CogniteError[*model.Asset]) ([]*model.Asset, []*model.Asset, bool) {
		var existingIDs []identity.Identity
		var rest []*model.Asset
		for _, item := range batch {
			if cerr.HasValue(item.Identity()) {
				existingIDs = append(existingIDs, item.Identity())
			} else {
				rest = append(rest, item)
			}
		}
		existing, err := f.Resources.Assets().RetrieveByIDs(ctx, existingIDs, true)
		if err != nil {
			return nil, batch, false
		}
		return existing, rest, true
	}

	out := runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*model.Asset) *model.Result[*model.Asset, *model.Asset] {
		return retryLoop(ctx, f, "ensureExistsAssets", chunk, retryMode, f.Resources.Assets().Create, onExists, cogerror.ResourceDataSetID, clean.AssetKeys, assetResolver{f})
	})
	out.Merge(result)
	return out
}

// GetOrCreateAssets fetches ids (ignoreUnknown); for missing ids, invokes
// createFn to build the new items, creates them, and returns the union.
func (f *Facade) GetOrCreateAssets(ctx context.Context, ids []identity.Identity, createFn func(missing []identity.Identity) []*model.Asset, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.Asset, *model.Asset] {
	existing, err := f.Resources.Assets().RetrieveByIDs(ctx, ids, true)
	result := &model.Result[*model.Asset, *model.Asset]{Results: existing}
	if err != nil {
		result.AddError(cogerror.New[*model.Asset](cogerror.Fatal, "", err.Error()))
		return result
	}

	found := identity.NewSet()
	for _, a := range existing {
		found.Add(a.Identity())
	}
	var missing []identity.Identity
	for _, id := range ids {
		if !found.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result
	}

	newItems := createFn(missing)
	created := f.createAssets(ctx, newItems, retryMode, sanitationMode)
	result.Merge(created)
	return result
}

// createAssets is plain create (no ItemExists dedup), used internally by
// GetOrCreateAssets once the caller has already filtered to missing ids.
func (f *Facade) createAssets(ctx context.Context, items []*model.Asset, retryMode RetryMode, sanitationMode sanitize.Mode) *model.Result[*model.Asset, *model.Asset] {
	chunks, result := sanitizeAndChunk("createAssets", items, sanitationMode, assetOps(), f.Config.MaxItemsPerChunk)
	out := runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*model.Asset) *model.Result[*model.Asset, *model.Asset] {
		return retryLoop[model.Asset](ctx, f, "createAssets", chunk, retryMode, f.Resources.Assets().Create, nil, cogerror.ResourceDataSetID, clean.AssetKeys, assetResolver{f})
	})
	out.Merge(result)
	return out
}

// UpdateAssets applies a batch of partial updates (spec §4.6's
// updateAssets).
func (f *Facade) UpdateAssets(ctx context.Context, updates []cdf.AssetUpdate, retryMode RetryMode) *model.Result[*cdf.AssetUpdate, *model.Asset] {
	ptrs := make([]*cdf.AssetUpdate, len(updates))
	for i := range updates {
		ptrs[i] = &updates[i]
	}
	chunks := chunker.ChunkSlice(ptrs, f.Config.MaxItemsPerChunk)

	call := func(ctx context.Context, batch []*cdf.AssetUpdate) ([]*model.Asset, *cdf.ResponseError) {
		plain := make([]cdf.AssetUpdate, len(batch))
		for i, u := range batch {
			plain[i] = *u
		}
		return f.Resources.Assets().Update(ctx, plain)
	}

	return runChunks(ctx, f, chunks, func(ctx context.Context, chunk []*cdf.AssetUpdate) *model.Result[*cdf.AssetUpdate, *model.Asset] {
		return retryLoop[cdf.AssetUpdate](ctx, f, "updateAssets", chunk, retryMode, call, nil, cogerror.ResourceID, assetUpdateKeys, nil)
	})
}

// DeleteAssets deletes assets by identity (supplements spec §4.6's
// create/update/upsert set with the delete operation named in §6's
// external interface list).
func (f *Facade) DeleteAssets(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	return f.Resources.Assets().Delete(ctx, ids, ignoreUnknown)
}

func assetUpdateKeys(u *cdf.AssetUpdate, resource cogerror.ResourceType) ([]any, bool) {
	if resource == cogerror.ResourceID || resource == cogerror.ResourceExternalID {
		return []any{u.ID}, true
	}
	return nil, false
}

// assetResolver expands an incomplete CogniteError by retrieving the
// partial identities with ignoreUnknown=true and reporting whichever ones
// come back absent as the full offender set (spec §4.5 step 1).
type assetResolver struct{ f *Facade }

func (r assetResolver) ResolveMissing(ctx context.Context, resource cogerror.ResourceType, partial []any) ([]any, error) {
	return resolveMissingGeneric(ctx, partial, func(ids []identity.Identity) ([]identity.Identity, error) {
		found, err := r.f.Resources.Assets().RetrieveByIDs(ctx, ids, true)
		if err != nil {
			return nil, err
		}
		out := make([]identity.Identity, len(found))
		for i, a := range found {
			out[i] = a.Identity()
		}
		return out, nil
	})
}

// resolveMissingGeneric turns a partial offender set of arbitrary key
// values (identities or plain strings) into the complement against
// lookupFound's result, for the subset of values that are identities.
// Non-identity values (labels, legacy names) pass through unchanged since
// there is no byIds lookup for them.
func resolveMissingGeneric(ctx context.Context, partial []any, lookupFound func([]identity.Identity) ([]identity.Identity, error)) ([]any, error) {
	var ids []identity.Identity
	var passthrough []any
	for _, v := range partial {
		if id, ok := v.(identity.Identity); ok {
			ids = append(ids, id)
		} else {
			passthrough = append(passthrough, v)
		}
	}
	if len(ids) == 0 {
		return passthrough, nil
	}
	found, err := lookupFound(ids)
	if err != nil {
		return nil, err
	}
	foundSet := identity.NewSet(found...)
	out := append([]any{}, passthrough...)
	for _, id := range ids {
		if !foundSet.Has(id) {
			out = append(out, id)
		}
	}
	return out, nil
}
