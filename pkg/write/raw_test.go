package write_test

import (
	"context"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRawRowsCreatesTableAndWritesRows(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	rows := []model.RawRow{
		{Key: "row1", Columns: map[string]any{"value": 1.0}},
		{Key: "row2", Columns: map[string]any{"value": 2.0}},
	}

	err := f.UpsertRawRows(ctx, "db1", "table1", rows, true)
	require.NoError(t, err)

	got, err := f.ListRawRows(ctx, "db1", "table1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpsertRawRowsFailsWithoutEnsureParentOnMissingTable(t *testing.T) {
	res := cdf.NewFakeResources()
	f := newTestFacade(res)
	ctx := context.Background()

	err := f.UpsertRawRows(ctx, "db1", "missing-table", []model.RawRow{{Key: "row1"}}, false)
	assert.Error(t, err)
}
