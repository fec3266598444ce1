package write_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInsertDataPointsSkipsMismatchedTypeWithinSeries matches the "data
// points with mismatched type" scenario: S1 is numeric, one of its two
// points is string-typed. The numeric point is inserted; the mismatched
// one is reported back as a skipped range.
func TestInsertDataPointsSkipsMismatchedTypeWithinSeries(t *testing.T) {
	res := cdf.NewFakeResources()
	res.OnInsertDataPoints = func(points map[identity.Identity][]model.DataPoint) *cdf.ResponseError {
		for _, series := range points {
			for _, dp := range series {
				if dp.IsString {
					return &cdf.ResponseError{Status: 400, Body: []byte(`{"error":{"code":400,"message":"Expected numeric value"}}`)}
				}
			}
		}
		for id, series := range points {
			res.SeedDataPoints(id, series)
		}
		return nil
	}

	f := newTestFacade(res)
	ctx := context.Background()
	id := identity.ByExternalID("S1")
	t0 := time.Now().Add(-time.Hour)
	t1 := time.Now()

	skipped := f.InsertDataPoints(ctx, map[identity.Identity][]model.DataPoint{
		id: {
			{Timestamp: t0, Value: 1.0},
			{Timestamp: t1, IsString: true, StringValue: "x"},
		},
	}, sanitize.Clean, nil, write.RetryOnError)

	require.Len(t, skipped, 1)
	assert.Equal(t, id, skipped[0].ID)
	require.Len(t, skipped[0].DataPoints, 1)
	assert.Equal(t, "x", skipped[0].DataPoints[0].StringValue)
}

func TestDeleteDataPointRangesRemovesSeededPoints(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()
	id := identity.ByExternalID("S1")

	t0 := time.Now().Add(-2 * time.Hour)
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	res.SeedDataPoints(id, []model.DataPoint{
		{Timestamp: t0, Value: 1.0},
		{Timestamp: t1, Value: 2.0},
		{Timestamp: t2, Value: 3.0},
	})

	err := f.DeleteDataPointRanges(ctx, []model.DataPointRange{
		{ID: id, Start: t0, End: t1},
	})
	require.NoError(t, err)

	remaining, err := res.DataPoints().ListRange(ctx, id, t0.Add(-time.Minute), t2.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, t2, remaining[0].Timestamp)
}

func TestInsertDataPointsAllGoodReturnsNoSkips(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()
	id := identity.ByExternalID("S1")

	skipped := f.InsertDataPoints(ctx, map[identity.Identity][]model.DataPoint{
		id: {{Timestamp: time.Now(), Value: 1.0}},
	}, sanitize.Clean, nil, write.RetryOnError)

	assert.Empty(t, skipped)
}
