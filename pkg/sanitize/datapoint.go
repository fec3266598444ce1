package sanitize

import (
	"math"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// SanitizeDataPoint mutates dp in place and reports whether it should be
// kept. Non-finite numeric values are handled per spec §9's resolved open
// question: Remove always drops them regardless of a configured
// replacement; Clean applies nanReplacement when set, else drops; None
// leaves the value untouched (the caller is responsible for deciding what
// to do with a batch that was never sanitized).
func SanitizeDataPoint(dp *model.DataPoint, limits DataPointLimits, mode Mode, nanReplacement *float64) (keep bool) {
	if dp.Timestamp.UnixMilli() < limits.TimestampMinMilli {
		dp.Timestamp = time.UnixMilli(limits.TimestampMinMilli).UTC()
	} else if dp.Timestamp.UnixMilli() > limits.TimestampMaxMilli {
		dp.Timestamp = time.UnixMilli(limits.TimestampMaxMilli).UTC()
	}

	if dp.IsString {
		dp.StringValue = TruncateUTF8(dp.StringValue, limits.StringValueBytes)
		return true
	}

	if isFiniteWithinBound(dp.Value, limits.NumericAbsMax) {
		return true
	}

	switch mode {
	case Remove:
		return false
	case Clean:
		if nanReplacement != nil {
			dp.Value = *nanReplacement
			return true
		}
		return false
	default: // None
		return true
	}
}

// VerifyDataPoint returns the first violated field of dp, or ("", false)
// if none.
func VerifyDataPoint(dp *model.DataPoint, limits DataPointLimits) (cogerror.ResourceType, bool) {
	ms := dp.Timestamp.UnixMilli()
	if ms < limits.TimestampMinMilli || ms > limits.TimestampMaxMilli {
		return cogerror.ResourceDataPointTimestamp, true
	}
	if dp.IsString {
		if len(dp.StringValue) > limits.StringValueBytes {
			return cogerror.ResourceDataPointValue, true
		}
		return "", false
	}
	if !isFiniteWithinBound(dp.Value, limits.NumericAbsMax) {
		return cogerror.ResourceDataPointValue, true
	}
	return "", false
}

func isFiniteWithinBound(v, bound float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return math.Abs(v) <= bound
}
