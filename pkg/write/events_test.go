package write_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/sanitize"
	"github.com/cuemby/cdf-extractor-utils/pkg/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureExistsEventsDedupsAgainstExisting(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	now := time.Now()
	_, re := res.Events().Create(ctx, []*model.Event{{ExternalID: "e1", Type: "alarm", Start: now}})
	require.Nil(t, re)

	result := f.EnsureExistsEvents(ctx, []*model.Event{
		{ExternalID: "e1", Type: "alarm", Start: now},
		{ExternalID: "e2", Type: "alarm", Start: now},
	}, write.RetryOnError, sanitize.Clean)

	assert.True(t, result.IsAllGood())
	assert.Len(t, result.Results, 2)
}

func TestUpdateEventsAppliesPartialUpdate(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	created, re := res.Events().Create(ctx, []*model.Event{{ExternalID: "e1", Description: "old"}})
	require.Nil(t, re)

	desc := "new"
	result := f.UpdateEvents(ctx, []cdf.EventUpdate{
		{ID: created[0].Identity(), Description: &desc},
	}, write.RetryOnError)

	require.True(t, result.IsAllGood())
	require.Len(t, result.Results, 1)
	assert.Equal(t, "new", result.Results[0].Description)
}
