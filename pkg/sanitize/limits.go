package sanitize

// AssetLimits are the spec §6 defaults for Asset, overridable via
// DefaultAssetLimits() plus field assignment.
type AssetLimits struct {
	ExternalIDBytes     int
	NameBytes           int
	DescriptionBytes    int
	SourceBytes         int
	MetadataMaxKeys     int
	MetadataKeyBytes    int
	MetadataValueBytes  int
	MetadataTotalBytes  int
	LabelsMax           int
	LabelBytes          int
}

// DefaultAssetLimits returns the spec §6 defaults.
func DefaultAssetLimits() AssetLimits {
	return AssetLimits{
		ExternalIDBytes:    255,
		NameBytes:          140,
		DescriptionBytes:   500,
		SourceBytes:        128,
		MetadataMaxKeys:    19,
		MetadataKeyBytes:   128,
		MetadataValueBytes: 10240,
		MetadataTotalBytes: 10240,
		LabelsMax:          10,
		LabelBytes:         255,
	}
}

// TimeSeriesLimits are the spec §6 defaults for TimeSeries.
type TimeSeriesLimits struct {
	ExternalIDBytes    int
	NameBytes          int
	DescriptionBytes   int
	UnitBytes          int
	MetadataMaxKeys    int
	MetadataKeyBytes   int
	MetadataValueBytes int
	LegacyNameBytes    int
}

func DefaultTimeSeriesLimits() TimeSeriesLimits {
	return TimeSeriesLimits{
		ExternalIDBytes:    255,
		NameBytes:          255,
		DescriptionBytes:   1000,
		UnitBytes:          32,
		MetadataMaxKeys:    18,
		MetadataKeyBytes:   32,
		MetadataValueBytes: 256,
		LegacyNameBytes:    255,
	}
}

// EventLimits are the spec §6 defaults for Event.
type EventLimits struct {
	ExternalIDBytes  int
	TypeBytes        int
	SubTypeBytes     int
	DescriptionBytes int
	SourceBytes      int
	MaxAssetIDs      int
	MetadataMaxKeys  int
}

func DefaultEventLimits() EventLimits {
	return EventLimits{
		ExternalIDBytes:  255,
		TypeBytes:        64,
		SubTypeBytes:     64,
		DescriptionBytes: 500,
		SourceBytes:      128,
		MaxAssetIDs:      10000,
		MetadataMaxKeys:  150,
	}
}

// DataPointLimits are the spec §6 defaults for DataPoint.
type DataPointLimits struct {
	StringValueBytes  int
	NumericAbsMax     float64
	TimestampMinMilli int64
	TimestampMaxMilli int64
}

func DefaultDataPointLimits() DataPointLimits {
	return DataPointLimits{
		StringValueBytes:  255,
		NumericAbsMax:     1e100,
		TimestampMinMilli: 0,
		TimestampMaxMilli: 4102444799999,
	}
}
