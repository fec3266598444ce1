package write

import (
	"context"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/classify"
	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/throttle"
)

// UpsertRawRows writes rows to a raw table, creating the table first when
// ensureParent is set (spec §6's createRows(db, table, rows, ensureParent)).
// Only TransientFatal responses are retried, up to ConfiguredMaxRetries;
// raw rows have no identity dimension a cleaner could partition by, so
// anything else is surfaced immediately.
func (f *Facade) UpsertRawRows(ctx context.Context, db, table string, rows []model.RawRow, ensureParent bool) error {
	for attempt := 0; attempt <= f.Config.ConfiguredMaxRetries; attempt++ {
		re := f.Resources.Raw().CreateRows(ctx, db, table, rows, ensureParent)
		if re == nil {
			return nil
		}
		cerr := classify.Classify[*model.RawRow](classify.ResponseError(*re), cogerror.ResourceID)
		if !cerr.IsTransient() {
			return cerr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(throttle.Backoff(attempt)):
		}
	}
	return &cogerror.CogniteError[*model.RawRow]{Type: cogerror.TransientFatal, Message: "raw row upsert exhausted retries"}
}

// ListRawRows is a thin pass-through to the raw table listing endpoint.
func (f *Facade) ListRawRows(ctx context.Context, db, table string) ([]model.RawRow, error) {
	return f.Resources.Raw().ListRows(ctx, db, table)
}

// DeleteRawRows is a thin pass-through to the raw row deletion endpoint.
func (f *Facade) DeleteRawRows(ctx context.Context, db, table string, keys []string) error {
	return f.Resources.Raw().DeleteRows(ctx, db, table, keys)
}
