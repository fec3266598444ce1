package sanitize

import (
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// SanitizeTimeSeries mutates ts in place to satisfy TimeSeriesLimits.
func SanitizeTimeSeries(ts *model.TimeSeries, limits TimeSeriesLimits) {
	ts.ExternalID = TruncateUTF8(ts.ExternalID, limits.ExternalIDBytes)
	ts.Name = TruncateUTF8(ts.Name, limits.NameBytes)
	ts.Description = TruncateUTF8(ts.Description, limits.DescriptionBytes)
	ts.Unit = TruncateUTF8(ts.Unit, limits.UnitBytes)
	ts.LegacyName = TruncateUTF8(ts.LegacyName, limits.LegacyNameBytes)
	ts.Metadata = clampMetadata(ts.Metadata, limits.MetadataMaxKeys, limits.MetadataKeyBytes, limits.MetadataValueBytes, 0)

	if ts.AssetID < 0 {
		ts.AssetID = 0
	}
	if ts.DataSetID < 0 {
		ts.DataSetID = 0
	}
}

// VerifyTimeSeries returns the first field of ts that still violates
// TimeSeriesLimits, or ("", false) if none do.
func VerifyTimeSeries(ts *model.TimeSeries, limits TimeSeriesLimits) (cogerror.ResourceType, bool) {
	switch {
	case len(ts.ExternalID) > limits.ExternalIDBytes:
		return cogerror.ResourceExternalID, true
	case len(ts.Name) > limits.NameBytes:
		return cogerror.ResourceName, true
	case len(ts.Description) > limits.DescriptionBytes:
		return cogerror.ResourceDescription, true
	case len(ts.Unit) > limits.UnitBytes:
		return cogerror.ResourceUnit, true
	case len(ts.LegacyName) > limits.LegacyNameBytes:
		return cogerror.ResourceLegacyName, true
	case limits.MetadataMaxKeys > 0 && len(ts.Metadata) > limits.MetadataMaxKeys:
		return cogerror.ResourceMetadata, true
	case ts.AssetID < 0 || ts.DataSetID < 0:
		return cogerror.ResourceUpdate, true
	}
	for k, v := range ts.Metadata {
		if len(k) > limits.MetadataKeyBytes || len(v) > limits.MetadataValueBytes {
			return cogerror.ResourceMetadata, true
		}
	}
	return "", false
}
