package clean_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDropsOffendingExternalIDs(t *testing.T) {
	items := []*model.Asset{
		{ExternalID: "keep-1"},
		{ExternalID: "bad-1"},
		{ExternalID: "keep-2"},
	}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceExternalID, "missing")
	err.AddValue(identity.ByExternalID("bad-1"))

	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, nil)
	require.Equal(t, 1, removed)
	require.Len(t, remaining, 2)
	assert.ElementsMatch(t, []string{"keep-1", "keep-2"}, []string{remaining[0].ExternalID, remaining[1].ExternalID})
	require.Len(t, err.Skipped, 1)
	assert.Equal(t, "bad-1", err.Skipped[0].ExternalID)
}

func TestCleanDropsItemsReferencingOffendingParent(t *testing.T) {
	items := []*model.Asset{
		{ExternalID: "a", ParentID: 1},
		{ExternalID: "b", ParentID: 2},
	}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceParentID, "parent missing")
	err.AddValue(identity.ByInternalID(2))

	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, nil)
	require.Equal(t, 1, removed)
	require.Len(t, remaining, 1)
	assert.Equal(t, "a", remaining[0].ExternalID)
}

func TestCleanDropsItemsReferencingOffendingLabel(t *testing.T) {
	items := []*model.Asset{
		{ExternalID: "a", Labels: model.Labels{"x", "bad-label"}},
		{ExternalID: "b", Labels: model.Labels{"x"}},
	}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceLabels, "label missing")
	err.AddValue("bad-label")

	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, nil)
	require.Equal(t, 1, removed)
	assert.Equal(t, "b", remaining[0].ExternalID)
}

type fakeResolver struct {
	offenders []any
	err       error
}

func (f fakeResolver) ResolveMissing(ctx context.Context, resource cogerror.ResourceType, partial []any) ([]any, error) {
	return f.offenders, f.err
}

func TestCleanResolvesIncompleteErrorBeforePartitioning(t *testing.T) {
	items := []*model.Asset{
		{ExternalID: "a", ParentExternal: "p1"},
		{ExternalID: "b", ParentExternal: "p2"},
	}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceParentExternalID, "one example only")
	err.AddValue("p1")
	err.Complete = false

	resolver := fakeResolver{offenders: []any{"p1", "p2"}}
	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, resolver)
	assert.Equal(t, 2, removed)
	assert.Empty(t, remaining)
	assert.True(t, err.Complete)
}

func TestCleanDropsWholeBatchWhenResolverFails(t *testing.T) {
	items := []*model.Asset{{ExternalID: "a"}, {ExternalID: "b"}}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceParentExternalID, "one example only")
	err.Complete = false

	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, fakeResolver{err: errors.New("boom")})
	assert.Equal(t, 2, removed)
	assert.Empty(t, remaining)
	assert.Len(t, err.Skipped, 2)
}

func TestCleanDropsWholeBatchWhenIncompleteAndNoResolver(t *testing.T) {
	items := []*model.Asset{{ExternalID: "a"}}
	err := cogerror.New[*model.Asset](cogerror.ItemMissing, cogerror.ResourceParentExternalID, "one example only")
	err.Complete = false

	remaining, removed := clean.Clean(context.Background(), err, items, clean.AssetKeys, nil)
	assert.Equal(t, 1, removed)
	assert.Empty(t, remaining)
}

func TestBoundGrowsWithBatchSizeAndRetries(t *testing.T) {
	assert.Equal(t, 1+clean.DefaultMaxRetries, clean.Bound(1, clean.DefaultMaxRetries))
	assert.Equal(t, 4+2, clean.Bound(16, 2))
	assert.Equal(t, 7+0, clean.Bound(100, 0))
}

func TestDataPointSeriesKeysPartitionsByIdentity(t *testing.T) {
	points := map[identity.Identity][]model.DataPoint{
		identity.ByExternalID("good"): {{Value: 1}},
		identity.ByExternalID("bad"):  {{Value: 2}},
	}
	offenders := map[any]struct{}{identity.ByExternalID("bad"): {}}
	kept, skipped := clean.DataPointSeriesKeys(points, offenders)
	assert.Len(t, kept, 1)
	assert.Len(t, skipped, 1)
	_, ok := kept[identity.ByExternalID("good")]
	assert.True(t, ok)
}
