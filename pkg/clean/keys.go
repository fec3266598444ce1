package clean

import (
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// AssetKeys implements KeyFunc[model.Asset] for every resource dimension
// spec §4.5 lists as applying to assets.
func AssetKeys(a *model.Asset, resource cogerror.ResourceType) ([]any, bool) {
	switch resource {
	case cogerror.ResourceID, cogerror.ResourceExternalID:
		return IdentityKeys(a.Identity()), true
	case cogerror.ResourceParentID:
		if a.ParentID == 0 {
			return nil, false
		}
		return []any{identity.ByInternalID(a.ParentID)}, true
	case cogerror.ResourceParentExternalID:
		if a.ParentExternal == "" {
			return nil, false
		}
		return []any{a.ParentExternal}, true
	case cogerror.ResourceDataSetID:
		if a.DataSetID == 0 {
			return nil, false
		}
		return []any{identity.ByInternalID(a.DataSetID)}, true
	case cogerror.ResourceLabels:
		if len(a.Labels) == 0 {
			return nil, false
		}
		keys := make([]any, len(a.Labels))
		for i, l := range a.Labels {
			keys[i] = l
		}
		return keys, true
	default:
		return nil, false
	}
}

// TimeSeriesKeys implements KeyFunc[model.TimeSeries].
func TimeSeriesKeys(ts *model.TimeSeries, resource cogerror.ResourceType) ([]any, bool) {
	switch resource {
	case cogerror.ResourceID, cogerror.ResourceExternalID:
		return IdentityKeys(ts.Identity()), true
	case cogerror.ResourceAssetID:
		if ts.AssetID == 0 {
			return nil, false
		}
		return []any{identity.ByInternalID(ts.AssetID)}, true
	case cogerror.ResourceDataSetID:
		if ts.DataSetID == 0 {
			return nil, false
		}
		return []any{identity.ByInternalID(ts.DataSetID)}, true
	case cogerror.ResourceLegacyName:
		if ts.LegacyName == "" {
			return nil, false
		}
		return []any{ts.LegacyName}, true
	default:
		return nil, false
	}
}

// EventKeys implements KeyFunc[model.Event].
func EventKeys(e *model.Event, resource cogerror.ResourceType) ([]any, bool) {
	switch resource {
	case cogerror.ResourceID, cogerror.ResourceExternalID:
		return IdentityKeys(e.Identity()), true
	case cogerror.ResourceDataSetID:
		if e.DataSetID == 0 {
			return nil, false
		}
		return []any{identity.ByInternalID(e.DataSetID)}, true
	case cogerror.ResourceAssetID:
		if len(e.AssetIDs) == 0 {
			return nil, false
		}
		keys := make([]any, len(e.AssetIDs))
		for i, id := range e.AssetIDs {
			keys[i] = identity.ByInternalID(id)
		}
		return keys, true
	default:
		return nil, false
	}
}

// DataPointSeriesKeys partitions a map[Identity][]model.DataPoint by
// ExternalId/Id offenders, as spec §4.5 describes for "offending
// per-series payloads" (the non-MismatchedType case). MismatchedType is
// instead resolved by probing the series point by point (see
// write.probeSeriesPoints): each point is retried as submitted, so the
// points the cloud actually accepts are committed and only the rejected
// ones are reported back, without guessing at a corrected flavor.
func DataPointSeriesKeys(points map[identity.Identity][]model.DataPoint, offenders map[any]struct{}) (kept map[identity.Identity][]model.DataPoint, skipped map[identity.Identity][]model.DataPoint) {
	kept = make(map[identity.Identity][]model.DataPoint, len(points))
	skipped = make(map[identity.Identity][]model.DataPoint)
	for id, series := range points {
		key := IdentityKeys(id)[0]
		if _, bad := offenders[key]; bad {
			skipped[id] = series
			continue
		}
		kept[id] = series
	}
	return kept, skipped
}
