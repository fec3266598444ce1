package failover

import (
	"encoding/json"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

var bucketRows = []byte("rows")

// openSnapshot opens (creating if needed) the local bbolt file backing a
// Coordinator's row-table snapshot. An empty path disables durability: the
// snapshot then lives in memory only, for the lifetime of the process.
func openSnapshot(path string) (*bolt.DB, error) {
	if path == "" {
		return nil, nil
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRows)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadSnapshot(db *bolt.DB) map[int]LogRow {
	snapshot := make(map[int]LogRow)
	if db == nil {
		return snapshot
	}
	_ = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		return b.ForEach(func(k, v []byte) error {
			idx, err := strconv.Atoi(string(k))
			if err != nil {
				return nil
			}
			var row LogRow
			if err := json.Unmarshal(v, &row); err != nil {
				return nil
			}
			snapshot[idx] = row
			return nil
		})
	})
	return snapshot
}

// persistSnapshotLocked mirrors the in-memory snapshot to bbolt. Callers
// must hold c.mu.
func (c *Coordinator) persistSnapshotLocked() {
	if c.db == nil {
		return
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		for idx, row := range c.snapshot {
			data, err := json.Marshal(row)
			if err != nil {
				continue
			}
			if err := b.Put([]byte(strconv.Itoa(idx)), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to persist row snapshot")
	}
}
