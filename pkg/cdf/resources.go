// Package cdf is the transport boundary spec §1 names as an external
// collaborator: "the underlying HTTP/OAuth client (assumed to expose
// typed resource endpoints)". The rest of the module depends only on the
// Resources interface here; HTTPResources is one concrete implementation,
// and FakeResources (fake.go) is the in-memory double the rest of the
// module's tests drive instead of a live cloud.
package cdf

import (
	"context"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// ResponseError is an alias of classify.ResponseError so callers outside
// classify don't need to import it directly to build one.
type ResponseError = classify.ResponseError

// AssetUpdate is a partial update to an existing asset, addressed by
// identity. Nil fields mean "leave unchanged"; a non-nil pointer sets the
// field to its target, including the zero value.
type AssetUpdate struct {
	ID             identity.Identity
	Name           *string
	Description    *string
	Source         *string
	Metadata       map[string]string
	ReplaceMetadata bool
	Labels         *model.Labels
	ParentID       *int64
	ParentExternal *string
	DataSetID      *int64
}

// TimeSeriesUpdate is the TimeSeries analogue of AssetUpdate.
type TimeSeriesUpdate struct {
	ID              identity.Identity
	Name            *string
	Description     *string
	Unit            *string
	Metadata        map[string]string
	ReplaceMetadata bool
	AssetID         *int64
	DataSetID       *int64
}

// EventUpdate is the Event analogue of AssetUpdate.
type EventUpdate struct {
	ID              identity.Identity
	Description     *string
	Source          *string
	Metadata        map[string]string
	ReplaceMetadata bool
	AssetIDs        *[]int64
	Start           *time.Time
	End             *time.Time
	DataSetID       *int64
}

// AssetsClient is the typed resource endpoint set for assets (spec §6).
type AssetsClient interface {
	Create(ctx context.Context, items []*model.Asset) ([]*model.Asset, *ResponseError)
	Update(ctx context.Context, updates []AssetUpdate) ([]*model.Asset, *ResponseError)
	RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Asset, error)
	Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error
}

// TimeSeriesClient is the typed resource endpoint set for time series.
type TimeSeriesClient interface {
	Create(ctx context.Context, items []*model.TimeSeries) ([]*model.TimeSeries, *ResponseError)
	Update(ctx context.Context, updates []TimeSeriesUpdate) ([]*model.TimeSeries, *ResponseError)
	RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.TimeSeries, error)
	Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error
}

// EventsClient is the typed resource endpoint set for events.
type EventsClient interface {
	Create(ctx context.Context, items []*model.Event) ([]*model.Event, *ResponseError)
	Update(ctx context.Context, updates []EventUpdate) ([]*model.Event, *ResponseError)
	RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Event, error)
	Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error
}

// LatestBefore bounds a listLatest query to points before a given instant.
type LatestBefore struct {
	ID     identity.Identity
	Before *time.Time
}

// DataPointsClient is the typed resource endpoint set for data points,
// including the size-capped insert endpoint (spec §6:
// N_dp_series, N_dp_points). HTTPResources sends inserts as a JSON body;
// it has no binary framed insert encoding.
type DataPointsClient interface {
	Insert(ctx context.Context, points map[identity.Identity][]model.DataPoint) *ResponseError
	ListLatest(ctx context.Context, queries []LatestBefore) (map[identity.Identity]*model.DataPoint, error)
	ListRange(ctx context.Context, id identity.Identity, start, end time.Time, limit int) ([]model.DataPoint, error)
	Delete(ctx context.Context, ranges []model.DataPointRange) error
}

// RawClient is the typed resource endpoint set for raw key/value tables.
type RawClient interface {
	ListRows(ctx context.Context, db, table string) ([]model.RawRow, error)
	CreateRows(ctx context.Context, db, table string, rows []model.RawRow, ensureParent bool) *ResponseError
	DeleteRows(ctx context.Context, db, table string, keys []string) error
}

// RunStatus is the status of an extraction pipeline run (spec §6).
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	RunSeen    RunStatus = "seen"
)

// ExtractionPipelineRun is the body of createRun.
type ExtractionPipelineRun struct {
	PipelineID string
	Status     RunStatus
	Message    string
}

// ExtractionPipeline is the body retrieve(pipelineId) returns.
type ExtractionPipeline struct {
	ID          string
	ExternalID  string
	Name        string
	LastSeen    time.Time
}

// ExtractionPipelinesClient is the typed resource endpoint set for
// extraction pipeline runs.
type ExtractionPipelinesClient interface {
	CreateRun(ctx context.Context, run ExtractionPipelineRun) error
	Retrieve(ctx context.Context, pipelineID string) (*ExtractionPipeline, error)
}

// LoginStatus is what the login/status endpoint returns (spec §6).
type LoginStatus struct {
	User     string
	LoggedIn bool
	Project  string
}

// Resources aggregates every typed endpoint family the write façade,
// upload queues, and failover coordinator depend on. It is the single
// boundary interface spec §1 calls "the underlying HTTP/OAuth client".
type Resources interface {
	Assets() AssetsClient
	TimeSeries() TimeSeriesClient
	Events() EventsClient
	DataPoints() DataPointsClient
	Raw() RawClient
	ExtractionPipelines() ExtractionPipelinesClient
	Login(ctx context.Context) (*LoginStatus, error)
}
