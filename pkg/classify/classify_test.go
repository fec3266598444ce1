package classify_test

import (
	"errors"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type asset struct{ ExternalID string }

func TestClassifyNonResponseExceptionIsFatal(t *testing.T) {
	err := classify.Classify[asset](classify.ResponseError{Exception: errors.New("dial tcp: refused")}, cogerror.ResourceAssetID)
	require.NotNil(t, err)
	assert.Equal(t, cogerror.Fatal, err.Type)
}

func TestClassify401IsFatal(t *testing.T) {
	err := classify.Classify[asset](classify.ResponseError{Status: 401}, cogerror.ResourceAssetID)
	assert.Equal(t, cogerror.Fatal, err.Type)
}

func TestClassify500IsTransient(t *testing.T) {
	err := classify.Classify[asset](classify.ResponseError{Status: 503}, cogerror.ResourceAssetID)
	assert.Equal(t, cogerror.TransientFatal, err.Type)
}

func TestClassifyMissingArray(t *testing.T) {
	body := []byte(`{"error":{"code":400,"message":"ids not found","missing":[{"externalId":"A"},{"id":42}]}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 400, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.ItemMissing, err.Type)
	assert.Equal(t, cogerror.ResourceAssetID, err.Resource)
	assert.True(t, err.HasValue(identity.ByExternalID("A")))
	assert.True(t, err.HasValue(identity.ByInternalID(42)))
	assert.True(t, err.Complete)
}

func TestClassifyDuplicated(t *testing.T) {
	body := []byte(`{"error":{"code":409,"message":"conflict","duplicated":[{"externalId":"A"}]}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 409, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.ItemExists, err.Type)
	assert.True(t, err.HasValue(identity.ByExternalID("A")))
}

func TestClassifyUnknownParentExternalIDIsIncomplete(t *testing.T) {
	body := []byte(`{"error":{"code":400,"message":"Reference to unknown parent with externalId some-missing-parent"}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 400, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.ItemMissing, err.Type)
	assert.Equal(t, cogerror.ResourceParentExternalID, err.Resource)
	assert.False(t, err.Complete)
	assert.True(t, err.HasValue("some-missing-parent"))
}

func TestClassifyParentIDsDoNotExistIsComplete(t *testing.T) {
	body := []byte(`{"error":{"code":400,"message":"The given parent ids do not exist: 1, 2, 3"}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 400, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.ItemMissing, err.Type)
	assert.Equal(t, cogerror.ResourceParentID, err.Resource)
	assert.True(t, err.Complete)
	assert.True(t, err.HasValue(identity.ByInternalID(1)))
	assert.True(t, err.HasValue(identity.ByInternalID(2)))
	assert.True(t, err.HasValue(identity.ByInternalID(3)))
}

func TestClassifyInvalidDataSetIDs(t *testing.T) {
	body := []byte(`{"error":{"code":400,"message":"Invalid dataSetIds: 5, 6"}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 400, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.ItemMissing, err.Type)
	assert.Equal(t, cogerror.ResourceDataSetID, err.Resource)
}

func TestClassifyMismatchedType(t *testing.T) {
	body := []byte(`{"error":{"code":400,"message":"Expected numeric value but got string"}}`)
	err := classify.Classify[asset](classify.ResponseError{Status: 400, Body: body}, cogerror.ResourceAssetID)
	require.Equal(t, cogerror.MismatchedType, err.Type)
	assert.Equal(t, cogerror.ResourceDataPointValue, err.Resource)
}
