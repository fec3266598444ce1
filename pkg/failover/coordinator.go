// Package failover implements the leader-election protocol of spec §4.8:
// N replicas share one row-table (modeled here as a RawUploadQueue-style
// database/table pair reached through the Write Façade's Raw path), each
// owning a row keyed by its replica index, and agree on exactly one active
// extractor through a heartbeat/promotion/step-down cycle.
package failover

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/write"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// LogRow is one replica's row in the shared state table (spec §4.8).
type LogRow struct {
	Index     int
	Timestamp time.Time
	Active    bool
}

func (r LogRow) responsive(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.Timestamp) < threshold
}

// Config holds the per-replica tuning spec §4.8 names.
type Config struct {
	DB    string
	Table string
	Index int

	InactivityThreshold time.Duration
	HeartbeatInterval   time.Duration
	WaitInterval        time.Duration

	// InitialActive seeds this replica's own row: true for the leader that
	// starts active, false for a standby.
	InitialActive bool

	// SnapshotPath, if set, persists the last-known row table to a local
	// bbolt file so a back-fill snapshot survives a process restart, not
	// just an in-memory gap (spec §4.8's "back-filled from the last
	// in-memory snapshot").
	SnapshotPath string
}

// Coordinator runs one replica's side of the protocol.
type Coordinator struct {
	facade *write.Facade
	cfg    Config
	cancel context.CancelFunc
	log    zerolog.Logger

	mu       sync.Mutex
	active   bool
	snapshot map[int]LogRow
	db       *bolt.DB
}

// New builds a Coordinator. cancel is invoked on step-down, so the caller's
// main operating loop observes the same cancellation signal queue disposal
// already reacts to (spec §5).
func New(f *write.Facade, cancel context.CancelFunc, cfg Config, log zerolog.Logger) (*Coordinator, error) {
	db, err := openSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		facade:   f,
		cfg:      cfg,
		cancel:   cancel,
		log:      log.With().Str("component", "failover").Logger(),
		active:   cfg.InitialActive,
		snapshot: loadSnapshot(db),
		db:       db,
	}
	return c, nil
}

// Close releases the local snapshot file, if any.
func (c *Coordinator) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// IsActive reports whether this replica currently believes it is active.
func (c *Coordinator) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Coordinator) setActive(v bool) {
	c.mu.Lock()
	c.active = v
	c.mu.Unlock()
	if v {
		metrics.CoordinatorActive.Set(1)
		metrics.RegisterComponent("coordinator", true, "")
	} else {
		metrics.CoordinatorActive.Set(0)
		metrics.RegisterComponent("coordinator", false, "standby")
	}
}

// Run writes this replica's initial row, starts the heartbeat
// (UpdateStateAtInterval) in the background, and — if this replica did not
// start active — blocks in WaitToBecomeActive until promoted or ctx is
// cancelled (spec §4.8 steps 1-2).
func (c *Coordinator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	c.log.Info().Str("run_id", runID).Int("index", c.cfg.Index).Bool("initial_active", c.cfg.InitialActive).Msg("coordinator starting")
	c.setActive(c.cfg.InitialActive)
	if err := c.writeRow(ctx); err != nil {
		return err
	}
	go c.UpdateStateAtInterval(ctx)
	if c.IsActive() {
		return nil
	}
	return c.WaitToBecomeActive(ctx)
}

// WaitToBecomeActive implements spec §4.8 step 2: every WaitInterval, read
// all rows; if no responsive row is active, the responsive standby with the
// smallest index is promoted. Returns once this replica is promoted, or ctx
// is cancelled.
func (c *Coordinator) WaitToBecomeActive(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.WaitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rows, err := c.readRows(ctx)
			if err != nil {
				c.log.Warn().Err(err).Msg("failed to read rows while waiting to become active")
				continue
			}
			if c.tryPromote(ctx, rows) {
				return nil
			}
		}
	}
}

func (c *Coordinator) tryPromote(ctx context.Context, rows map[int]LogRow) bool {
	now := time.Now()
	var smallest int
	found := false
	for idx, row := range rows {
		if !row.responsive(now, c.cfg.InactivityThreshold) {
			continue
		}
		if row.Active {
			return false
		}
		if !found || idx < smallest {
			smallest = idx
			found = true
		}
	}
	if !found || smallest != c.cfg.Index {
		return false
	}
	c.setActive(true)
	if err := c.writeRow(ctx); err != nil {
		c.log.Error().Err(err).Msg("failed to write promoted row")
	}
	return true
}

// UpdateStateAtInterval is the heartbeat: every HeartbeatInterval, write
// this replica's current row, then run CheckIfMultipleActiveExtractors
// against a fresh read (spec §4.8 steps 1 and 3). Runs until ctx is done.
func (c *Coordinator) UpdateStateAtInterval(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeRow(ctx); err != nil {
				c.log.Warn().Err(err).Msg("failed to write heartbeat row")
				continue
			}
			rows, err := c.readRows(ctx)
			if err != nil {
				c.log.Warn().Err(err).Msg("failed to read rows for multi-active check")
				continue
			}
			c.CheckIfMultipleActiveExtractors(rows)
		}
	}
}

// CheckIfMultipleActiveExtractors implements spec §4.8 step 3: if two or
// more rows are responsive with Active true, the replica with the largest
// index steps down.
func (c *Coordinator) CheckIfMultipleActiveExtractors(rows map[int]LogRow) {
	now := time.Now()
	largest := -1
	count := 0
	for idx, row := range rows {
		if !row.Active || !row.responsive(now, c.cfg.InactivityThreshold) {
			continue
		}
		count++
		if idx > largest {
			largest = idx
		}
	}
	if count < 2 || largest != c.cfg.Index {
		return
	}
	c.log.Warn().Int("index", c.cfg.Index).Msg("multiple active extractors detected, stepping down")
	c.setActive(false)
	metrics.CoordinatorStepDowns.Inc()
	if c.cancel != nil {
		c.cancel()
	}
}

type rowPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Active    bool      `json:"active"`
}

func (c *Coordinator) writeRow(ctx context.Context) error {
	payload := rowPayload{Timestamp: time.Now(), Active: c.IsActive()}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var columns map[string]any
	if err := json.Unmarshal(b, &columns); err != nil {
		return err
	}
	row := model.RawRow{Key: strconv.Itoa(c.cfg.Index), Columns: columns}
	return c.facade.UpsertRawRows(ctx, c.cfg.DB, c.cfg.Table, []model.RawRow{row}, true)
}

// readRows lists the shared row table, back-fills any row missing from that
// read with the last in-memory snapshot (spec §4.8: "missing rows … are
// back-filled from the last in-memory snapshot to avoid oscillation"), then
// updates the snapshot — and its durable bbolt mirror, if configured — with
// what was actually observed.
func (c *Coordinator) readRows(ctx context.Context) (map[int]LogRow, error) {
	raw, err := c.facade.ListRawRows(ctx, c.cfg.DB, c.cfg.Table)
	if err != nil {
		return nil, err
	}

	rows := make(map[int]LogRow, len(raw))
	for _, r := range raw {
		idx, err := strconv.Atoi(r.Key)
		if err != nil {
			continue
		}
		b, err := json.Marshal(r.Columns)
		if err != nil {
			continue
		}
		var payload rowPayload
		if err := json.Unmarshal(b, &payload); err != nil {
			continue
		}
		rows[idx] = LogRow{Index: idx, Timestamp: payload.Timestamp, Active: payload.Active}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, row := range c.snapshot {
		if _, ok := rows[idx]; !ok {
			rows[idx] = row
		}
	}
	for idx, row := range rows {
		c.snapshot[idx] = row
	}
	c.persistSnapshotLocked()
	return rows, nil
}
