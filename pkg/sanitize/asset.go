package sanitize

import (
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// SanitizeAsset mutates a in place to satisfy AssetLimits: truncating
// strings at UTF-8 boundaries, clamping metadata, bounding labels, and
// clamping negative parent/data set ids to zero (spec §4.3).
func SanitizeAsset(a *model.Asset, limits AssetLimits) {
	a.ExternalID = TruncateUTF8(a.ExternalID, limits.ExternalIDBytes)
	a.Name = TruncateUTF8(a.Name, limits.NameBytes)
	a.Description = TruncateUTF8(a.Description, limits.DescriptionBytes)
	a.Source = TruncateUTF8(a.Source, limits.SourceBytes)
	a.Metadata = clampMetadata(a.Metadata, limits.MetadataMaxKeys, limits.MetadataKeyBytes, limits.MetadataValueBytes, limits.MetadataTotalBytes)

	if limits.LabelsMax > 0 && len(a.Labels) > limits.LabelsMax {
		a.Labels = a.Labels[:limits.LabelsMax]
	}
	for i, l := range a.Labels {
		a.Labels[i] = TruncateUTF8(l, limits.LabelBytes)
	}

	if a.ParentID < 0 {
		a.ParentID = 0
	}
	if a.DataSetID < 0 {
		a.DataSetID = 0
	}
}

// VerifyAsset returns the first field of a that still violates
// AssetLimits, or ("", false) if a satisfies all of them.
func VerifyAsset(a *model.Asset, limits AssetLimits) (cogerror.ResourceType, bool) {
	switch {
	case len(a.ExternalID) > limits.ExternalIDBytes:
		return cogerror.ResourceExternalID, true
	case len(a.Name) > limits.NameBytes:
		return cogerror.ResourceName, true
	case len(a.Description) > limits.DescriptionBytes:
		return cogerror.ResourceDescription, true
	case len(a.Source) > limits.SourceBytes:
		return cogerror.ResourceSource, true
	case limits.MetadataMaxKeys > 0 && len(a.Metadata) > limits.MetadataMaxKeys:
		return cogerror.ResourceMetadata, true
	case limits.MetadataTotalBytes > 0 && metadataSerializedSize(a.Metadata) > limits.MetadataTotalBytes:
		return cogerror.ResourceMetadata, true
	case limits.LabelsMax > 0 && len(a.Labels) > limits.LabelsMax:
		return cogerror.ResourceLabels, true
	case a.ParentID < 0 || a.DataSetID < 0:
		return cogerror.ResourceUpdate, true
	}
	for k, v := range a.Metadata {
		if len(k) > limits.MetadataKeyBytes || len(v) > limits.MetadataValueBytes {
			return cogerror.ResourceMetadata, true
		}
	}
	for _, l := range a.Labels {
		if len(l) > limits.LabelBytes {
			return cogerror.ResourceLabels, true
		}
	}
	return "", false
}
