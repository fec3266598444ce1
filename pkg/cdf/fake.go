package cdf

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

// FakeResources is an in-memory Resources double for tests: the write
// façade, upload queues, and failover coordinator drive it exactly like
// the real cloud, and it lets tests inject failures via the On* hooks
// before falling back to its default in-memory behavior.
type FakeResources struct {
	mu sync.Mutex

	nextID int64

	assets     map[identity.Identity]*model.Asset
	timeSeries map[identity.Identity]*model.TimeSeries
	events     map[identity.Identity]*model.Event
	dataPoints map[identity.Identity][]model.DataPoint
	raw        map[string][]model.RawRow
	pipelines  map[string]*ExtractionPipeline
	runs       []ExtractionPipelineRun
	rawTable   map[string]map[string]*model.RawRow

	// On* hooks let a test override one call's behavior (e.g. to return
	// a crafted ResponseError) without reimplementing the whole double.
	OnCreateAssets func(items []*model.Asset) ([]*model.Asset, *ResponseError)
	OnCreateTimeSeries func(items []*model.TimeSeries) ([]*model.TimeSeries, *ResponseError)
	OnCreateEvents func(items []*model.Event) ([]*model.Event, *ResponseError)
	OnInsertDataPoints func(points map[identity.Identity][]model.DataPoint) *ResponseError
	OnLogin func() (*LoginStatus, error)

	LoginStatus LoginStatus
}

// NewFakeResources returns an empty in-memory double ready to use.
func NewFakeResources() *FakeResources {
	return &FakeResources{
		assets:     make(map[identity.Identity]*model.Asset),
		timeSeries: make(map[identity.Identity]*model.TimeSeries),
		events:     make(map[identity.Identity]*model.Event),
		dataPoints: make(map[identity.Identity][]model.DataPoint),
		raw:        make(map[string][]model.RawRow),
		rawTable:   make(map[string]map[string]*model.RawRow),
		pipelines:  make(map[string]*ExtractionPipeline),
		LoginStatus: LoginStatus{User: "fake-user", LoggedIn: true, Project: "fake-project"},
	}
}

func (f *FakeResources) Assets() AssetsClient                           { return fakeAssets{f} }
func (f *FakeResources) TimeSeries() TimeSeriesClient                   { return fakeTimeSeries{f} }
func (f *FakeResources) Events() EventsClient                           { return fakeEvents{f} }
func (f *FakeResources) DataPoints() DataPointsClient                   { return fakeDataPoints{f} }
func (f *FakeResources) Raw() RawClient                                 { return fakeRaw{f} }
func (f *FakeResources) ExtractionPipelines() ExtractionPipelinesClient { return fakePipelines{f} }

func (f *FakeResources) Login(ctx context.Context) (*LoginStatus, error) {
	if f.OnLogin != nil {
		return f.OnLogin()
	}
	status := f.LoginStatus
	return &status, nil
}

func (f *FakeResources) allocID() int64 {
	f.nextID++
	return f.nextID
}

type fakeAssets struct{ f *FakeResources }

func (c fakeAssets) Create(ctx context.Context, items []*model.Asset) ([]*model.Asset, *ResponseError) {
	if c.f.OnCreateAssets != nil {
		return c.f.OnCreateAssets(items)
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	created := make([]*model.Asset, 0, len(items))
	for _, a := range items {
		id := a.Identity()
		if _, exists := c.f.assets[id]; exists {
			return nil, &ResponseError{Status: 409, Body: duplicatedBody(a.ExternalID)}
		}
	}
	for _, a := range items {
		cp := *a
		if cp.ID == 0 {
			cp.ID = c.f.allocID()
		}
		cp.CreatedTime = time.Now()
		c.f.assets[cp.Identity()] = &cp
		created = append(created, &cp)
	}
	return created, nil
}

func (c fakeAssets) Update(ctx context.Context, updates []AssetUpdate) ([]*model.Asset, *ResponseError) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.Asset, 0, len(updates))
	for _, u := range updates {
		a, ok := c.f.assets[u.ID]
		if !ok {
			return nil, &ResponseError{Status: 400, Body: missingBody(u.ID)}
		}
		if u.Name != nil {
			a.Name = *u.Name
		}
		if u.Description != nil {
			a.Description = *u.Description
		}
		if u.Source != nil {
			a.Source = *u.Source
		}
		if u.Metadata != nil {
			if u.ReplaceMetadata || a.Metadata == nil {
				a.Metadata = u.Metadata
			} else {
				for k, v := range u.Metadata {
					a.Metadata[k] = v
				}
			}
		}
		if u.Labels != nil {
			a.Labels = *u.Labels
		}
		if u.ParentID != nil {
			a.ParentID = *u.ParentID
		}
		if u.DataSetID != nil {
			a.DataSetID = *u.DataSetID
		}
		a.LastUpdated = time.Now()
		out = append(out, a)
	}
	return out, nil
}

func (c fakeAssets) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Asset, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := c.f.assets[id]; ok {
			out = append(out, a)
		} else if !ignoreUnknown {
			return nil, &notFoundErr{id}
		}
	}
	return out, nil
}

func (c fakeAssets) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.f.assets[id]; !ok && !ignoreUnknown {
			return &notFoundErr{id}
		}
		delete(c.f.assets, id)
	}
	return nil
}

type fakeTimeSeries struct{ f *FakeResources }

func (c fakeTimeSeries) Create(ctx context.Context, items []*model.TimeSeries) ([]*model.TimeSeries, *ResponseError) {
	if c.f.OnCreateTimeSeries != nil {
		return c.f.OnCreateTimeSeries(items)
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, ts := range items {
		if _, exists := c.f.timeSeries[ts.Identity()]; exists {
			return nil, &ResponseError{Status: 409, Body: duplicatedBody(ts.ExternalID)}
		}
	}
	created := make([]*model.TimeSeries, 0, len(items))
	for _, ts := range items {
		cp := *ts
		if cp.ID == 0 {
			cp.ID = c.f.allocID()
		}
		cp.CreatedTime = time.Now()
		c.f.timeSeries[cp.Identity()] = &cp
		created = append(created, &cp)
	}
	return created, nil
}

func (c fakeTimeSeries) Update(ctx context.Context, updates []TimeSeriesUpdate) ([]*model.TimeSeries, *ResponseError) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.TimeSeries, 0, len(updates))
	for _, u := range updates {
		ts, ok := c.f.timeSeries[u.ID]
		if !ok {
			return nil, &ResponseError{Status: 400, Body: missingBody(u.ID)}
		}
		if u.Name != nil {
			ts.Name = *u.Name
		}
		if u.Description != nil {
			ts.Description = *u.Description
		}
		if u.Unit != nil {
			ts.Unit = *u.Unit
		}
		if u.Metadata != nil {
			if u.ReplaceMetadata || ts.Metadata == nil {
				ts.Metadata = u.Metadata
			} else {
				for k, v := range u.Metadata {
					ts.Metadata[k] = v
				}
			}
		}
		if u.AssetID != nil {
			ts.AssetID = *u.AssetID
		}
		if u.DataSetID != nil {
			ts.DataSetID = *u.DataSetID
		}
		ts.LastUpdated = time.Now()
		out = append(out, ts)
	}
	return out, nil
}

func (c fakeTimeSeries) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.TimeSeries, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.TimeSeries, 0, len(ids))
	for _, id := range ids {
		if ts, ok := c.f.timeSeries[id]; ok {
			out = append(out, ts)
		} else if !ignoreUnknown {
			return nil, &notFoundErr{id}
		}
	}
	return out, nil
}

func (c fakeTimeSeries) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.f.timeSeries[id]; !ok && !ignoreUnknown {
			return &notFoundErr{id}
		}
		delete(c.f.timeSeries, id)
	}
	return nil
}

type fakeEvents struct{ f *FakeResources }

func (c fakeEvents) Create(ctx context.Context, items []*model.Event) ([]*model.Event, *ResponseError) {
	if c.f.OnCreateEvents != nil {
		return c.f.OnCreateEvents(items)
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, e := range items {
		if _, exists := c.f.events[e.Identity()]; exists {
			return nil, &ResponseError{Status: 409, Body: duplicatedBody(e.ExternalID)}
		}
	}
	created := make([]*model.Event, 0, len(items))
	for _, e := range items {
		cp := *e
		if cp.ID == 0 {
			cp.ID = c.f.allocID()
		}
		cp.CreatedTime = time.Now()
		c.f.events[cp.Identity()] = &cp
		created = append(created, &cp)
	}
	return created, nil
}

func (c fakeEvents) Update(ctx context.Context, updates []EventUpdate) ([]*model.Event, *ResponseError) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.Event, 0, len(updates))
	for _, u := range updates {
		e, ok := c.f.events[u.ID]
		if !ok {
			return nil, &ResponseError{Status: 400, Body: missingBody(u.ID)}
		}
		if u.Description != nil {
			e.Description = *u.Description
		}
		if u.Source != nil {
			e.Source = *u.Source
		}
		if u.AssetIDs != nil {
			e.AssetIDs = *u.AssetIDs
		}
		if u.Start != nil {
			e.Start = *u.Start
		}
		if u.End != nil {
			e.End = *u.End
		}
		e.LastUpdated = time.Now()
		out = append(out, e)
	}
	return out, nil
}

func (c fakeEvents) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Event, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make([]*model.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := c.f.events[id]; ok {
			out = append(out, e)
		} else if !ignoreUnknown {
			return nil, &notFoundErr{id}
		}
	}
	return out, nil
}

func (c fakeEvents) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.f.events[id]; !ok && !ignoreUnknown {
			return &notFoundErr{id}
		}
		delete(c.f.events, id)
	}
	return nil
}

type fakeDataPoints struct{ f *FakeResources }

func (c fakeDataPoints) Insert(ctx context.Context, points map[identity.Identity][]model.DataPoint) *ResponseError {
	if c.f.OnInsertDataPoints != nil {
		return c.f.OnInsertDataPoints(points)
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for id, series := range points {
		c.f.dataPoints[id] = append(c.f.dataPoints[id], series...)
		sort.Slice(c.f.dataPoints[id], func(i, j int) bool {
			return c.f.dataPoints[id][i].Timestamp.Before(c.f.dataPoints[id][j].Timestamp)
		})
	}
	return nil
}

func (c fakeDataPoints) ListLatest(ctx context.Context, queries []LatestBefore) (map[identity.Identity]*model.DataPoint, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := make(map[identity.Identity]*model.DataPoint, len(queries))
	for _, q := range queries {
		series := c.f.dataPoints[q.ID]
		var latest *model.DataPoint
		for i := range series {
			dp := series[i]
			if q.Before != nil && !dp.Timestamp.Before(*q.Before) {
				continue
			}
			if latest == nil || dp.Timestamp.After(latest.Timestamp) {
				latest = &dp
			}
		}
		if latest != nil {
			out[q.ID] = latest
		}
	}
	return out, nil
}

func (c fakeDataPoints) ListRange(ctx context.Context, id identity.Identity, start, end time.Time, limit int) ([]model.DataPoint, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	var out []model.DataPoint
	for _, dp := range c.f.dataPoints[id] {
		if dp.Timestamp.Before(start) || dp.Timestamp.After(end) {
			continue
		}
		out = append(out, dp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c fakeDataPoints) Delete(ctx context.Context, ranges []model.DataPointRange) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, rng := range ranges {
		series := c.f.dataPoints[rng.ID]
		kept := series[:0]
		for _, dp := range series {
			if dp.Timestamp.Before(rng.Start) || dp.Timestamp.After(rng.End) {
				kept = append(kept, dp)
			}
		}
		c.f.dataPoints[rng.ID] = kept
	}
	return nil
}

type fakeRaw struct{ f *FakeResources }

func rawKey(db, table string) string { return db + "/" + table }

func (c fakeRaw) ListRows(ctx context.Context, db, table string) ([]model.RawRow, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	rows := c.f.rawTable[rawKey(db, table)]
	out := make([]model.RawRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, nil
}

func (c fakeRaw) CreateRows(ctx context.Context, db, table string, rows []model.RawRow, ensureParent bool) *ResponseError {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	key := rawKey(db, table)
	if c.f.rawTable[key] == nil {
		if !ensureParent {
			return &ResponseError{Status: 400, Body: []byte(`{"error":{"code":400,"message":"table not found"}}`)}
		}
		c.f.rawTable[key] = make(map[string]*model.RawRow)
	}
	for _, row := range rows {
		cp := row
		c.f.rawTable[key][row.Key] = &cp
	}
	return nil
}

func (c fakeRaw) DeleteRows(ctx context.Context, db, table string, keys []string) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	rows := c.f.rawTable[rawKey(db, table)]
	for _, k := range keys {
		delete(rows, k)
	}
	return nil
}

type fakePipelines struct{ f *FakeResources }

func (c fakePipelines) CreateRun(ctx context.Context, run ExtractionPipelineRun) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.runs = append(c.f.runs, run)
	return nil
}

func (c fakePipelines) Retrieve(ctx context.Context, pipelineID string) (*ExtractionPipeline, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	p, ok := c.f.pipelines[pipelineID]
	if !ok {
		return nil, &notFoundErr{identity.ByExternalID(pipelineID)}
	}
	return p, nil
}

// SeedDataPoints lets a test (or an OnInsertDataPoints hook delegating to
// default storage) append points as if Insert had stored them directly.
func (f *FakeResources) SeedDataPoints(id identity.Identity, points []model.DataPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataPoints[id] = append(f.dataPoints[id], points...)
	sort.Slice(f.dataPoints[id], func(i, j int) bool {
		return f.dataPoints[id][i].Timestamp.Before(f.dataPoints[id][j].Timestamp)
	})
}

// SeedPipeline lets a test pre-populate a pipeline Retrieve should find.
func (f *FakeResources) SeedPipeline(p *ExtractionPipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelines[p.ExternalID] = p
}

// Runs returns the runs recorded by CreateRun, for test assertions.
func (f *FakeResources) Runs() []ExtractionPipelineRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ExtractionPipelineRun, len(f.runs))
	copy(out, f.runs)
	return out
}

type notFoundErr struct{ id identity.Identity }

func (e *notFoundErr) Error() string { return "cdf: not found: " + e.id.String() }

func duplicatedBody(externalID string) []byte {
	return []byte(`{"error":{"code":409,"message":"conflict","duplicated":[{"externalId":"` + externalID + `"}]}}`)
}

func missingBody(id identity.Identity) []byte {
	if id.Kind == identity.External {
		return []byte(`{"error":{"code":400,"message":"ids not found","missing":[{"externalId":"` + id.ExternalID + `"}]}}`)
	}
	return []byte(`{"error":{"code":400,"message":"ids not found"}}`)
}
