package cdf_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAssetsCreateThenRetrieve(t *testing.T) {
	f := cdf.NewFakeResources()
	created, re := f.Assets().Create(context.Background(), []*model.Asset{{ExternalID: "a1", Name: "pump"}})
	require.Nil(t, re)
	require.Len(t, created, 1)
	assert.NotZero(t, created[0].ID)

	got, err := f.Assets().RetrieveByIDs(context.Background(), []identity.Identity{identity.ByExternalID("a1")}, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pump", got[0].Name)
}

func TestFakeAssetsCreateDuplicateReturnsConflict(t *testing.T) {
	f := cdf.NewFakeResources()
	_, re := f.Assets().Create(context.Background(), []*model.Asset{{ExternalID: "a1"}})
	require.Nil(t, re)

	_, re = f.Assets().Create(context.Background(), []*model.Asset{{ExternalID: "a1"}})
	require.NotNil(t, re)
	assert.Equal(t, 409, re.Status)
}

func TestFakeAssetsRetrieveUnknownFailsWithoutIgnore(t *testing.T) {
	f := cdf.NewFakeResources()
	_, err := f.Assets().RetrieveByIDs(context.Background(), []identity.Identity{identity.ByExternalID("missing")}, false)
	assert.Error(t, err)

	got, err := f.Assets().RetrieveByIDs(context.Background(), []identity.Identity{identity.ByExternalID("missing")}, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFakeDataPointsInsertThenListRange(t *testing.T) {
	f := cdf.NewFakeResources()
	id := identity.ByExternalID("ts1")
	now := time.Now()
	re := f.DataPoints().Insert(context.Background(), map[identity.Identity][]model.DataPoint{
		id: {
			{Timestamp: now.Add(-time.Hour), Value: 1},
			{Timestamp: now, Value: 2},
		},
	})
	require.Nil(t, re)

	points, err := f.DataPoints().ListRange(context.Background(), id, now.Add(-2*time.Hour), now.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 1.0, points[0].Value)
}

func TestFakeRawCreateRowsRequiresEnsureParentForNewTable(t *testing.T) {
	f := cdf.NewFakeResources()
	re := f.Raw().CreateRows(context.Background(), "db", "tbl", []model.RawRow{{Key: "k1"}}, false)
	require.NotNil(t, re)

	re = f.Raw().CreateRows(context.Background(), "db", "tbl", []model.RawRow{{Key: "k1"}}, true)
	require.Nil(t, re)
	rows, err := f.Raw().ListRows(context.Background(), "db", "tbl")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFakePipelinesCreateRunRecordsAndRetrieveFindsSeeded(t *testing.T) {
	f := cdf.NewFakeResources()
	f.SeedPipeline(&cdf.ExtractionPipeline{ExternalID: "pipe1", Name: "main"})

	err := f.ExtractionPipelines().CreateRun(context.Background(), cdf.ExtractionPipelineRun{PipelineID: "pipe1", Status: cdf.RunSuccess})
	require.NoError(t, err)
	assert.Len(t, f.Runs(), 1)

	p, err := f.ExtractionPipelines().Retrieve(context.Background(), "pipe1")
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name)
}

func TestFakeLoginReturnsConfiguredStatus(t *testing.T) {
	f := cdf.NewFakeResources()
	status, err := f.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, status.LoggedIn)
}
