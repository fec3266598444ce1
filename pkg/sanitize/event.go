package sanitize

import (
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// SanitizeEvent mutates e in place to satisfy EventLimits, and clamps
// Start/End so Start <= End (spec §3).
func SanitizeEvent(e *model.Event, limits EventLimits) {
	e.ExternalID = TruncateUTF8(e.ExternalID, limits.ExternalIDBytes)
	e.Type = TruncateUTF8(e.Type, limits.TypeBytes)
	e.SubType = TruncateUTF8(e.SubType, limits.SubTypeBytes)
	e.Description = TruncateUTF8(e.Description, limits.DescriptionBytes)
	e.Source = TruncateUTF8(e.Source, limits.SourceBytes)
	e.Metadata = clampMetadata(e.Metadata, limits.MetadataMaxKeys, 0, 0, 0)

	if limits.MaxAssetIDs > 0 && len(e.AssetIDs) > limits.MaxAssetIDs {
		e.AssetIDs = e.AssetIDs[:limits.MaxAssetIDs]
	}
	filtered := e.AssetIDs[:0]
	for _, id := range e.AssetIDs {
		if id > 0 {
			filtered = append(filtered, id)
		}
	}
	e.AssetIDs = filtered

	if e.DataSetID < 0 {
		e.DataSetID = 0
	}

	if e.End.Before(e.Start) {
		e.End = e.Start
	}
}

// VerifyEvent returns the first field of e that still violates
// EventLimits or the start<=end invariant, or ("", false) if none do.
func VerifyEvent(e *model.Event, limits EventLimits) (cogerror.ResourceType, bool) {
	switch {
	case len(e.ExternalID) > limits.ExternalIDBytes:
		return cogerror.ResourceExternalID, true
	case len(e.Type) > limits.TypeBytes:
		return cogerror.ResourceEntityType, true
	case len(e.SubType) > limits.SubTypeBytes:
		return cogerror.ResourceSubType, true
	case len(e.Description) > limits.DescriptionBytes:
		return cogerror.ResourceDescription, true
	case len(e.Source) > limits.SourceBytes:
		return cogerror.ResourceSource, true
	case limits.MetadataMaxKeys > 0 && len(e.Metadata) > limits.MetadataMaxKeys:
		return cogerror.ResourceMetadata, true
	case limits.MaxAssetIDs > 0 && len(e.AssetIDs) > limits.MaxAssetIDs:
		return cogerror.ResourceAssetID, true
	case e.DataSetID < 0:
		return cogerror.ResourceDataSetID, true
	case e.End.Before(e.Start):
		return cogerror.ResourceTimeRange, true
	}
	for _, id := range e.AssetIDs {
		if id <= 0 {
			return cogerror.ResourceAssetID, true
		}
	}
	return "", false
}
