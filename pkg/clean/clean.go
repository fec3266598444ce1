// Package clean implements the offender-removal cleaner (spec §4.5): given
// a CogniteError and the batch that produced it, return a smaller batch
// with the offending items stripped out and moved into error.Skipped.
package clean

import (
	"context"
	"math"

	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
)

// Resolver expands an incomplete offender set by querying the cloud for
// the ids in partial and reporting which ones are actually missing/bad.
// Defined locally (rather than depending on pkg/cdf) so clean has no
// forward dependency on the transport package; pkg/write implements it
// once per entity type on top of the cdf byIds endpoints.
type Resolver interface {
	ResolveMissing(ctx context.Context, resource cogerror.ResourceType, partial []any) (offenders []any, err error)
}

// KeyFunc extracts the dimension value clean should partition an item by,
// for the error's Resource type, and whether the item references that
// dimension at all (an item with no parent can never be dropped by a
// ParentId offender set, for instance).
type KeyFunc[T any] func(item *T, resource cogerror.ResourceType) (keys []any, applicable bool)

// DefaultMaxRetries is the default configurable retry budget (spec §4.5:
// ceil(log2(|batch|)) + configuredMaxRetries); the cleaner itself only
// ever runs one partition pass per call, the retry loop lives in the
// write façade and reuses Bound.
const DefaultMaxRetries = 3

// Bound returns the iteration budget the write façade's retry loop must
// respect for a batch of the given size, per spec §4.5's termination
// guarantee.
func Bound(batchSize, configuredMaxRetries int) int {
	if batchSize <= 1 {
		return 1 + configuredMaxRetries
	}
	return int(math.Ceil(math.Log2(float64(batchSize)))) + configuredMaxRetries
}

// Clean partitions items by err's Resource dimension, dropping anything
// keyed to (or referencing) an offender, and appends the dropped items to
// err.Skipped. If err.Complete is false, resolver is used to expand the
// offender set first; a resolver failure (or nil resolver) causes the
// entire batch to be dropped into Skipped, matching spec §4.5 step 1's
// "give up and drop the entire batch" fallback.
//
// keyFn must report, for every item, the set of keys (under err.Resource)
// that item exposes; an item whose keyFn reports applicable=false is kept
// unconditionally (the error's dimension doesn't apply to it).
func Clean[T any](ctx context.Context, err *cogerror.CogniteError[*T], items []*T, keyFn KeyFunc[T], resolver Resolver) (remaining []*T, removed int) {
	if !err.Complete {
		if resolver == nil {
			err.Skipped = append(err.Skipped, items...)
			return nil, len(items)
		}
		offenders, resolveErr := resolver.ResolveMissing(ctx, err.Resource, err.ValueSlice())
		if resolveErr != nil {
			err.Skipped = append(err.Skipped, items...)
			return nil, len(items)
		}
		err.Values = make(map[any]struct{}, len(offenders))
		for _, v := range offenders {
			err.Values[v] = struct{}{}
		}
		err.Complete = true
	}

	remaining = make([]*T, 0, len(items))
	for _, item := range items {
		keys, applicable := keyFn(item, err.Resource)
		if !applicable {
			remaining = append(remaining, item)
			continue
		}
		if isOffending(keys, err.Values) {
			err.Skipped = append(err.Skipped, item)
			removed++
			continue
		}
		remaining = append(remaining, item)
	}
	return remaining, removed
}

func isOffending(keys []any, offenders map[any]struct{}) bool {
	for _, k := range keys {
		if _, bad := offenders[k]; bad {
			return true
		}
	}
	return false
}

// AssetKeys, TimeSeriesKeys, and EventKeys (keys.go) are the
// reference KeyFunc implementations for the three entity-shaped batches
// clean is used against; they live in this package (rather than in pkg/model) since
// they encode spec §4.5's dimension-specific partitioning rules, not
// general model behavior.

// IdentityKeys reports the Id/ExternalId dimension for anything with an
// Identity() method, which is every model type.
func IdentityKeys(id identity.Identity) []any {
	if id.Kind == identity.Internal {
		return []any{identity.ByInternalID(id.InternalID)}
	}
	return []any{identity.ByExternalID(id.ExternalID)}
}
