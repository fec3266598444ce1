package write_test

import (
	"context"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCascadingReferenceFailures drives a single createAssets batch through
// several consecutive retryLoop iterations, each tripped up by a different
// offending resource (duplicate, two distinct unknown parent externalIds,
// unknown parent ids, and unknown data set ids), confirming that per-kind
// errors collapse into one merged CogniteError per resource and that the
// clean items still make it through within the retry budget.
func TestCascadingReferenceFailures(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	res.OnCreateAssets = func(items []*model.Asset) ([]*model.Asset, *cdf.ResponseError) {
		for _, a := range items {
			if a.ExternalID == "dup1" {
				return nil, &cdf.ResponseError{Status: 409, Body: []byte(
					`{"error":{"code":409,"message":"conflict","duplicated":[{"externalId":"dup1"}]}}`)}
			}
		}
		for _, a := range items {
			if a.ParentExternal == "missing-parent-1" {
				return nil, &cdf.ResponseError{Status: 400, Body: []byte(
					`{"error":{"code":400,"message":"Reference to unknown parent with externalId missing-parent-1"}}`)}
			}
		}
		for _, a := range items {
			if a.ParentExternal == "missing-parent-2" {
				return nil, &cdf.ResponseError{Status: 400, Body: []byte(
					`{"error":{"code":400,"message":"Reference to unknown parent with externalId missing-parent-2"}}`)}
			}
		}
		for _, a := range items {
			if a.ParentID != 0 {
				return nil, &cdf.ResponseError{Status: 400, Body: []byte(
					`{"error":{"code":400,"message":"The given parent ids do not exist: 9001, 9002"}}`)}
			}
		}
		for _, a := range items {
			if a.DataSetID != 0 {
				return nil, &cdf.ResponseError{Status: 400, Body: []byte(
					`{"error":{"code":400,"message":"Invalid dataSetIds: 8001, 8002"}}`)}
			}
		}
		created := make([]*model.Asset, len(items))
		for i, a := range items {
			cp := *a
			cp.ID = int64(i + 100)
			created[i] = &cp
		}
		return created, nil
	}

	items := []*model.Asset{
		{ExternalID: "ok1", Name: "survivor"},
		{ExternalID: "dup1", Name: "already there"},
		{ExternalID: "pext1", Name: "orphan-1a", ParentExternal: "missing-parent-1"},
		{ExternalID: "pext2", Name: "orphan-1b", ParentExternal: "missing-parent-1"},
		{ExternalID: "pext3", Name: "orphan-2", ParentExternal: "missing-parent-2"},
		{ExternalID: "pid1", Name: "bad-parent-id-1", ParentID: 9001},
		{ExternalID: "pid2", Name: "bad-parent-id-2", ParentID: 9002},
		{ExternalID: "dsid1", Name: "bad-dataset-1", DataSetID: 8001},
		{ExternalID: "dsid2", Name: "bad-dataset-2", DataSetID: 8002},
	}

	ids := make([]identity.Identity, len(items))
	for i, a := range items {
		ids[i] = a.Identity()
	}

	result := f.GetOrCreateAssets(ctx, ids, func(missing []identity.Identity) []*model.Asset {
		byID := make(map[identity.Identity]*model.Asset, len(items))
		for _, a := range items {
			byID[a.Identity()] = a
		}
		out := make([]*model.Asset, 0, len(missing))
		for _, id := range missing {
			out = append(out, byID[id])
		}
		return out
	}, write.RetryOnError, sanitize.Clean)

	require.False(t, result.IsAllGood())
	require.Len(t, result.Results, 1)
	assert.Equal(t, "ok1", result.Results[0].ExternalID)

	byResource := make(map[cogerror.ResourceType]*cogerror.CogniteError[*model.Asset], len(result.Errors))
	for _, cerr := range result.Errors {
		byResource[cerr.Resource] = cerr
	}
	require.Len(t, byResource, 4)

	dup := byResource[cogerror.ResourceExternalID]
	require.NotNil(t, dup)
	assert.Equal(t, cogerror.ItemExists, dup.Type)
	assert.True(t, dup.HasValue(identity.ByExternalID("dup1")))
	assert.Len(t, dup.Skipped, 1)

	parentExt := byResource[cogerror.ResourceParentExternalID]
	require.NotNil(t, parentExt)
	assert.Equal(t, cogerror.ItemMissing, parentExt.Type)
	assert.True(t, parentExt.HasValue("missing-parent-1"))
	assert.True(t, parentExt.HasValue("missing-parent-2"))
	assert.Len(t, parentExt.Skipped, 3)

	parentID := byResource[cogerror.ResourceParentID]
	require.NotNil(t, parentID)
	assert.True(t, parentID.HasValue(identity.ByInternalID(9001)))
	assert.True(t, parentID.HasValue(identity.ByInternalID(9002)))
	assert.Len(t, parentID.Skipped, 2)

	dataSet := byResource[cogerror.ResourceDataSetID]
	require.NotNil(t, dataSet)
	assert.True(t, dataSet.HasValue(identity.ByInternalID(8001)))
	assert.True(t, dataSet.HasValue(identity.ByInternalID(8002)))
	assert.Len(t, dataSet.Skipped, 2)

	totalSkipped := len(dup.Skipped) + len(parentExt.Skipped) + len(parentID.Skipped) + len(dataSet.Skipped)
	assert.Equal(t, len(items)-1, totalSkipped)
}
