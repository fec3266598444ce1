// Package model defines the domain objects moved through the write façade:
// Asset, TimeSeries, Event, DataPoint, RawRow, and the generic
// CogniteResult (spec §3).
package model

import (
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
)

// Labels is a small wrapper around a label list; kept as a named type so
// sanitizer and cleaner code can attach methods without repeating
// []string everywhere.
type Labels []string

// Asset is a node in the cloud's asset hierarchy.
type Asset struct {
	ID             int64             `json:"id,omitempty"`
	ExternalID     string            `json:"externalId,omitempty"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Source         string            `json:"source,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Labels         Labels            `json:"labels,omitempty"`
	ParentID       int64             `json:"parentId,omitempty"`
	ParentExternal string            `json:"parentExternalId,omitempty"`
	DataSetID      int64             `json:"dataSetId,omitempty"`
	CreatedTime    time.Time         `json:"createdTime,omitzero"`
	LastUpdated    time.Time         `json:"lastUpdatedTime,omitzero"`
}

// Identity returns the asset's declared identity, preferring ExternalID
// (the unique key sanitize.CleanRequest dedups assets by).
func (a *Asset) Identity() identity.Identity {
	if a.ExternalID != "" {
		return identity.ByExternalID(a.ExternalID)
	}
	return identity.ByInternalID(a.ID)
}

// TimeSeries describes a single numeric or string data point stream.
type TimeSeries struct {
	ID          int64             `json:"id,omitempty"`
	ExternalID  string            `json:"externalId,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	IsString    bool              `json:"isString"`
	IsStep      bool              `json:"isStep"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AssetID     int64             `json:"assetId,omitempty"`
	DataSetID   int64             `json:"dataSetId,omitempty"`
	LegacyName  string            `json:"legacyName,omitempty"`
	CreatedTime time.Time         `json:"createdTime,omitzero"`
	LastUpdated time.Time         `json:"lastUpdatedTime,omitzero"`
}

func (t *TimeSeries) Identity() identity.Identity {
	if t.ExternalID != "" {
		return identity.ByExternalID(t.ExternalID)
	}
	return identity.ByInternalID(t.ID)
}

// Event is a time-bounded occurrence, optionally linked to assets.
type Event struct {
	ID          int64             `json:"id,omitempty"`
	ExternalID  string            `json:"externalId,omitempty"`
	Type        string            `json:"type,omitempty"`
	SubType     string            `json:"subtype,omitempty"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AssetIDs    []int64           `json:"assetIds,omitempty"`
	DataSetID   int64             `json:"dataSetId,omitempty"`
	Start       time.Time         `json:"startTime"`
	End         time.Time         `json:"endTime"`
	CreatedTime time.Time         `json:"createdTime,omitzero"`
	LastUpdated time.Time         `json:"lastUpdatedTime,omitzero"`
}

func (e *Event) Identity() identity.Identity {
	if e.ExternalID != "" {
		return identity.ByExternalID(e.ExternalID)
	}
	return identity.ByInternalID(e.ID)
}

// DataPoint is a single numeric or string sample of a TimeSeries.
type DataPoint struct {
	Timestamp   time.Time
	Value       float64
	StringValue string
	IsString    bool
}

// DataPointInsertError reports a skipped range of points for one series
// (spec §4.6).
type DataPointInsertError struct {
	ID         identity.Identity
	DataPoints []DataPoint
}

// DataPointRange names a [Start, End] deletion range for one series
// (spec §6 delete(ranges)).
type DataPointRange struct {
	ID    identity.Identity
	Start time.Time
	End   time.Time
}

// TimeRange is the result of getExtractedRanges: the first and last
// timestamp the cloud holds for a series, or Empty if none.
type TimeRange struct {
	First time.Time
	Last  time.Time
	Empty bool
}

// RawRow is a single key/value row in a raw database table.
type RawRow struct {
	Key     string         `json:"key"`
	Columns map[string]any `json:"columns"`
}

// Result is the generic CogniteResult<TIn,TOut>: what the façade returns
// from every operation.
type Result[TIn any, TOut any] struct {
	Results []TOut
	Errors  []*cogerror.CogniteError[TIn]
}

// IsAllGood reports whether the result carries no errors at all (spec §3).
func (r *Result[TIn, TOut]) IsAllGood() bool {
	return len(r.Errors) == 0
}

// AddError appends err, coalescing with an existing error of the same
// (Type, Resource) key per spec §7's propagation policy.
func (r *Result[TIn, TOut]) AddError(err *cogerror.CogniteError[TIn]) {
	if err == nil {
		return
	}
	key := err.Key()
	for _, existing := range r.Errors {
		if existing.Key() == key {
			existing.Merge(err)
			return
		}
	}
	r.Errors = append(r.Errors, err)
}

// Merge folds other into r: appends Results, coalesces Errors by
// (Type, Resource) (spec §3, §7).
func (r *Result[TIn, TOut]) Merge(other *Result[TIn, TOut]) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
	for _, err := range other.Errors {
		r.AddError(err)
	}
}

// Throw returns the first Fatal error in the result, if any, as a plain
// Go error (spec §7's "Throw" helper).
func (r *Result[TIn, TOut]) Throw() error {
	for _, err := range r.Errors {
		if err.IsFatal() {
			return err
		}
	}
	return nil
}

// ThrowOnFatal returns the first Fatal error (the same as Throw), mirroring the source's
// ThrowOnFatal helper for callers that want exception-style propagation at
// the very top of an extractor's run loop. Library code itself never calls
// this; it returns errors instead (spec §9's redesign note).
func (r *Result[TIn, TOut]) ThrowOnFatal() error {
	return r.Throw()
}
