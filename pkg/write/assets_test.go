package write_test

import (
	"context"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacade(res cdf.Resources) *write.Facade {
	return write.New(res, write.DefaultConfig(), zerolog.Nop())
}

func TestEnsureExistsAssetsMixedCreateAndDuplicate(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	_, re := res.Assets().Create(ctx, []*model.Asset{{ExternalID: "a1", Name: "pump-1"}})
	require.Nil(t, re)

	result := f.EnsureExistsAssets(ctx, []*model.Asset{
		{ExternalID: "a1", Name: "pump-1"},
		{ExternalID: "a2", Name: "pump-2"},
	}, write.RetryOnError, sanitize.Clean)

	assert.True(t, result.IsAllGood())
	assert.Len(t, result.Results, 2)

	names := map[string]bool{}
	for _, a := range result.Results {
		names[a.ExternalID] = true
	}
	assert.True(t, names["a1"])
	assert.True(t, names["a2"])
}

func TestEnsureExistsAssetsSanitizesOverLimitName(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	longName := ""
	for i := 0; i < 200; i++ {
		longName += "x"
	}

	result := f.EnsureExistsAssets(ctx, []*model.Asset{
		{ExternalID: "a1", Name: longName},
	}, write.RetryOnError, sanitize.Clean)

	require.Len(t, result.Results, 1)
	assert.LessOrEqual(t, len(result.Results[0].Name), 140)
}

func TestUpdateAssetsAppliesPartialUpdate(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	created, re := res.Assets().Create(ctx, []*model.Asset{{ExternalID: "a1", Name: "old"}})
	require.Nil(t, re)

	newName := "new"
	result := f.UpdateAssets(ctx, []cdf.AssetUpdate{
		{ID: created[0].Identity(), Name: &newName},
	}, write.RetryOnError)

	require.True(t, result.IsAllGood())
	require.Len(t, result.Results, 1)
	assert.Equal(t, "new", result.Results[0].Name)
}

func TestGetOrCreateAssetsCreatesOnlyMissing(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	_, re := res.Assets().Create(ctx, []*model.Asset{{ExternalID: "a1", Name: "existing"}})
	require.Nil(t, re)

	ids := []identity.Identity{identity.ByExternalID("a1"), identity.ByExternalID("a2")}
	result := f.GetOrCreateAssets(ctx, ids, func(missing []identity.Identity) []*model.Asset {
		var out []*model.Asset
		for _, id := range missing {
			out = append(out, &model.Asset{ExternalID: id.ExternalID, Name: "created-" + id.ExternalID})
		}
		return out
	}, write.RetryOnError, sanitize.Clean)

	assert.True(t, result.IsAllGood())
	assert.Len(t, result.Results, 2)
}
