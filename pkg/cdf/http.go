package cdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/rs/zerolog"
)

// Config wires an HTTPResources to one cloud project: base URL, bearer
// token source, and per-request limits the caller must respect (spec §6:
// N_dp_series, N_dp_points).
type Config struct {
	BaseURL       string
	Project       string
	TokenSource   func(ctx context.Context) (string, error)
	HTTPClient    *http.Client
	MaxSeriesPerInsert int
	MaxPointsPerInsert int
}

// HTTPResources is the net/http-backed Resources implementation: every
// typed client is a thin wrapper issuing one JSON request per call.
type HTTPResources struct {
	cfg Config
	log zerolog.Logger
}

// NewHTTPResources builds a Resources bound to cfg. A zero-value
// cfg.HTTPClient gets a 30s timeout, matching the teacher's health
// checker default of a bounded client rather than relying on
// http.DefaultClient (which has no timeout at all).
func NewHTTPResources(cfg Config, log zerolog.Logger) *HTTPResources {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxSeriesPerInsert == 0 {
		cfg.MaxSeriesPerInsert = 10_000
	}
	if cfg.MaxPointsPerInsert == 0 {
		cfg.MaxPointsPerInsert = 100_000
	}
	return &HTTPResources{cfg: cfg, log: log.With().Str("component", "cdf-http").Logger()}
}

func (r *HTTPResources) Assets() AssetsClient                             { return assetsClient{r} }
func (r *HTTPResources) TimeSeries() TimeSeriesClient                     { return timeSeriesClient{r} }
func (r *HTTPResources) Events() EventsClient                             { return eventsClient{r} }
func (r *HTTPResources) DataPoints() DataPointsClient                     { return dataPointsClient{r} }
func (r *HTTPResources) Raw() RawClient                                   { return rawClient{r} }
func (r *HTTPResources) ExtractionPipelines() ExtractionPipelinesClient   { return pipelinesClient{r} }

func (r *HTTPResources) Login(ctx context.Context) (*LoginStatus, error) {
	var out LoginStatus
	if err := r.get(ctx, "/login/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues a JSON request and returns either the decoded body on 2xx, or
// a *ResponseError describing the failure for classify.Classify to parse.
// A transport-level failure (dial error, context cancellation) is reported
// via ResponseError.Exception rather than Status/Body.
func (r *HTTPResources) do(ctx context.Context, method, path string, body, out any) *ResponseError {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &ResponseError{Exception: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return &ResponseError{Exception: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-cdp-project", r.cfg.Project)
	if r.cfg.TokenSource != nil {
		token, tokErr := r.cfg.TokenSource(ctx)
		if tokErr != nil {
			return &ResponseError{Exception: fmt.Errorf("token source: %w", tokErr)}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return &ResponseError{Exception: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ResponseError{Exception: err}
	}

	if resp.StatusCode >= 300 {
		return &ResponseError{Status: resp.StatusCode, Body: respBody}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &ResponseError{Exception: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func (r *HTTPResources) get(ctx context.Context, path string, out any) error {
	if re := r.do(ctx, http.MethodGet, path, nil, out); re != nil {
		if re.Exception != nil {
			return re.Exception
		}
		return fmt.Errorf("cdf: %s returned status %d", path, re.Status)
	}
	return nil
}

type assetsClient struct{ r *HTTPResources }

func (c assetsClient) Create(ctx context.Context, items []*model.Asset) ([]*model.Asset, *ResponseError) {
	var out struct {
		Items []*model.Asset `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/assets", map[string]any{"items": items}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c assetsClient) Update(ctx context.Context, updates []AssetUpdate) ([]*model.Asset, *ResponseError) {
	var out struct {
		Items []*model.Asset `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/assets/update", map[string]any{"items": updates}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c assetsClient) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Asset, error) {
	var out struct {
		Items []*model.Asset `json:"items"`
	}
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	if err := c.r.postOK(ctx, "/assets/byids", body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c assetsClient) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	return c.r.postOK(ctx, "/assets/delete", body, nil)
}

type timeSeriesClient struct{ r *HTTPResources }

func (c timeSeriesClient) Create(ctx context.Context, items []*model.TimeSeries) ([]*model.TimeSeries, *ResponseError) {
	var out struct {
		Items []*model.TimeSeries `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/timeseries", map[string]any{"items": items}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c timeSeriesClient) Update(ctx context.Context, updates []TimeSeriesUpdate) ([]*model.TimeSeries, *ResponseError) {
	var out struct {
		Items []*model.TimeSeries `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/timeseries/update", map[string]any{"items": updates}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c timeSeriesClient) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.TimeSeries, error) {
	var out struct {
		Items []*model.TimeSeries `json:"items"`
	}
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	if err := c.r.postOK(ctx, "/timeseries/byids", body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c timeSeriesClient) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	return c.r.postOK(ctx, "/timeseries/delete", body, nil)
}

type eventsClient struct{ r *HTTPResources }

func (c eventsClient) Create(ctx context.Context, items []*model.Event) ([]*model.Event, *ResponseError) {
	var out struct {
		Items []*model.Event `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/events", map[string]any{"items": items}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c eventsClient) Update(ctx context.Context, updates []EventUpdate) ([]*model.Event, *ResponseError) {
	var out struct {
		Items []*model.Event `json:"items"`
	}
	if re := c.r.do(ctx, http.MethodPost, "/events/update", map[string]any{"items": updates}, &out); re != nil {
		return nil, re
	}
	return out.Items, nil
}

func (c eventsClient) RetrieveByIDs(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) ([]*model.Event, error) {
	var out struct {
		Items []*model.Event `json:"items"`
	}
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	if err := c.r.postOK(ctx, "/events/byids", body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c eventsClient) Delete(ctx context.Context, ids []identity.Identity, ignoreUnknown bool) error {
	body := map[string]any{"items": identityRefs(ids), "ignoreUnknown": ignoreUnknown}
	return c.r.postOK(ctx, "/events/delete", body, nil)
}

type dataPointsClient struct{ r *HTTPResources }

// wireSeriesInsert is the JSON-over-HTTP insert envelope. Spec §4.7 calls
// for a binary on-disk frame for the buffer file (see pkg/queue), but the
// wire insert call itself is plain JSON, matching the cloud API surface
// described in spec §6.
type wireSeriesInsert struct {
	ID         *int64           `json:"id,omitempty"`
	ExternalID *string          `json:"externalId,omitempty"`
	DataPoints []wireDataPoint  `json:"datapoints"`
}

type wireDataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value,omitempty"`
	String    *string `json:"stringValue,omitempty"`
}

func (c dataPointsClient) Insert(ctx context.Context, points map[identity.Identity][]model.DataPoint) *ResponseError {
	items := make([]wireSeriesInsert, 0, len(points))
	seriesCount := 0
	pointCount := 0
	for id, series := range points {
		seriesCount++
		pointCount += len(series)
		w := wireSeriesInsert{DataPoints: make([]wireDataPoint, len(series))}
		if id.Kind == identity.Internal {
			v := id.InternalID
			w.ID = &v
		} else {
			v := id.ExternalID
			w.ExternalID = &v
		}
		for i, dp := range series {
			wdp := wireDataPoint{Timestamp: dp.Timestamp.UnixMilli()}
			if dp.IsString {
				s := dp.StringValue
				wdp.String = &s
			} else {
				wdp.Value = dp.Value
			}
			w.DataPoints[i] = wdp
		}
		items = append(items, w)
	}
	if seriesCount > c.r.cfg.MaxSeriesPerInsert || pointCount > c.r.cfg.MaxPointsPerInsert {
		return &ResponseError{Exception: fmt.Errorf("insert exceeds per-request limits (%d series, %d points)", seriesCount, pointCount)}
	}
	return c.r.do(ctx, http.MethodPost, "/timeseries/data", map[string]any{"items": items}, nil)
}

func (c dataPointsClient) ListLatest(ctx context.Context, queries []LatestBefore) (map[identity.Identity]*model.DataPoint, error) {
	reqItems := make([]map[string]any, len(queries))
	for i, q := range queries {
		m := identityRef(q.ID)
		if q.Before != nil {
			m["before"] = strconv.FormatInt(q.Before.UnixMilli(), 10)
		}
		reqItems[i] = m
	}
	var out struct {
		Items []struct {
			ID         int64           `json:"id"`
			ExternalID string          `json:"externalId"`
			DataPoints []wireDataPoint `json:"datapoints"`
		} `json:"items"`
	}
	if err := c.r.postOK(ctx, "/timeseries/data/latest", map[string]any{"items": reqItems}, &out); err != nil {
		return nil, err
	}
	result := make(map[identity.Identity]*model.DataPoint, len(out.Items))
	for _, item := range out.Items {
		id := identity.ByInternalID(item.ID)
		if item.ExternalID != "" {
			id = identity.ByExternalID(item.ExternalID)
		}
		if len(item.DataPoints) == 0 {
			continue
		}
		result[id] = fromWireDataPoint(item.DataPoints[0])
	}
	return result, nil
}

func (c dataPointsClient) ListRange(ctx context.Context, id identity.Identity, start, end time.Time, limit int) ([]model.DataPoint, error) {
	body := identityRef(id)
	body["start"] = strconv.FormatInt(start.UnixMilli(), 10)
	body["end"] = strconv.FormatInt(end.UnixMilli(), 10)
	body["limit"] = limit
	var out struct {
		DataPoints []wireDataPoint `json:"datapoints"`
	}
	if err := c.r.postOK(ctx, "/timeseries/data/list", body, &out); err != nil {
		return nil, err
	}
	points := make([]model.DataPoint, len(out.DataPoints))
	for i, wdp := range out.DataPoints {
		points[i] = *fromWireDataPoint(wdp)
	}
	return points, nil
}

func (c dataPointsClient) Delete(ctx context.Context, ranges []model.DataPointRange) error {
	items := make([]map[string]any, len(ranges))
	for i, rng := range ranges {
		m := identityRef(rng.ID)
		m["inclusiveBegin"] = rng.Start.UnixMilli()
		m["exclusiveEnd"] = rng.End.UnixMilli() + 1
		items[i] = m
	}
	return c.r.postOK(ctx, "/timeseries/data/delete", map[string]any{"items": items}, nil)
}

func fromWireDataPoint(wdp wireDataPoint) *model.DataPoint {
	dp := &model.DataPoint{Timestamp: time.UnixMilli(wdp.Timestamp)}
	if wdp.String != nil {
		dp.IsString = true
		dp.StringValue = *wdp.String
	} else {
		dp.Value = wdp.Value
	}
	return dp
}

type rawClient struct{ r *HTTPResources }

func (c rawClient) ListRows(ctx context.Context, db, table string) ([]model.RawRow, error) {
	var out struct {
		Items []model.RawRow `json:"items"`
	}
	path := fmt.Sprintf("/raw/dbs/%s/tables/%s/rows", db, table)
	if err := c.r.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c rawClient) CreateRows(ctx context.Context, db, table string, rows []model.RawRow, ensureParent bool) *ResponseError {
	path := fmt.Sprintf("/raw/dbs/%s/tables/%s/rows?ensureParent=%t", db, table, ensureParent)
	return c.r.do(ctx, http.MethodPost, path, map[string]any{"items": rows}, nil)
}

func (c rawClient) DeleteRows(ctx context.Context, db, table string, keys []string) error {
	path := fmt.Sprintf("/raw/dbs/%s/tables/%s/rows/delete", db, table)
	items := make([]map[string]string, len(keys))
	for i, k := range keys {
		items[i] = map[string]string{"key": k}
	}
	return c.r.postOK(ctx, path, map[string]any{"items": items}, nil)
}

type pipelinesClient struct{ r *HTTPResources }

func (c pipelinesClient) CreateRun(ctx context.Context, run ExtractionPipelineRun) error {
	body := map[string]any{
		"externalId": run.PipelineID,
		"status":     string(run.Status),
		"message":    run.Message,
	}
	return c.r.postOK(ctx, "/extpipes/runs", body, nil)
}

func (c pipelinesClient) Retrieve(ctx context.Context, pipelineID string) (*ExtractionPipeline, error) {
	var out ExtractionPipeline
	if err := c.r.postOK(ctx, "/extpipes/byids", map[string]any{"items": []map[string]string{{"externalId": pipelineID}}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPResources) postOK(ctx context.Context, path string, body, out any) error {
	if re := r.do(ctx, http.MethodPost, path, body, out); re != nil {
		if re.Exception != nil {
			return re.Exception
		}
		return fmt.Errorf("cdf: %s returned status %d: %s", path, re.Status, string(re.Body))
	}
	return nil
}

func identityRef(id identity.Identity) map[string]any {
	if id.Kind == identity.Internal {
		return map[string]any{"id": id.InternalID}
	}
	return map[string]any{"externalId": id.ExternalID}
}

func identityRefs(ids []identity.Identity) []map[string]any {
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = identityRef(id)
	}
	return out
}
