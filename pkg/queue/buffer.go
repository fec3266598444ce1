package queue

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
)

// ReadFrames reads every length-prefixed frame out of path, in order,
// decoding each with codec. A corrupt trailing frame (partial write torn
// by a crash mid-append) is dropped rather than failing the whole read,
// since the format must be append-safe across restarts (spec §4.7). Used
// both by the queue's own flush loop and by cdf-bufferctl.
func ReadFrames[T any](path string, codec Codec[T]) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []T
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		item, err := codec.Decode(payload)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// WriteFrames overwrites path with items, each framed length-prefixed via
// codec. Returns the number of bytes written.
func WriteFrames[T any](path string, codec Codec[T], items []T) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var lenBuf [4]byte
	var size int64
	for _, item := range items {
		payload, err := codec.Encode(item)
		if err != nil {
			continue
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return size, err
		}
		if _, err := f.Write(payload); err != nil {
			return size, err
		}
		size += int64(len(lenBuf) + len(payload))
	}
	return size, nil
}

func (q *Queue[T]) readBuffer() []T {
	if q.cfg.BufferPath == "" {
		return nil
	}
	items, err := ReadFrames(q.cfg.BufferPath, q.cfg.Codec)
	if err != nil {
		q.cfg.Log.Warn().Err(err).Str("queue", q.cfg.Name).Msg("failed to read buffer file")
		return nil
	}
	return items
}

// writeBuffer overwrites BufferPath with items, framed length-prefixed.
// Called only from the owning queue's flush loop (spec §5: "accessed only
// by the owning queue's flush loop").
func (q *Queue[T]) writeBuffer(items []T) {
	if q.cfg.BufferPath == "" {
		q.cfg.Log.Warn().Str("queue", q.cfg.Name).Int("items", len(items)).Msg("no buffer path configured, dropping failed items")
		return
	}

	size, err := WriteFrames(q.cfg.BufferPath, q.cfg.Codec, items)
	if err != nil {
		q.cfg.Log.Error().Err(err).Str("queue", q.cfg.Name).Msg("failed to write buffer file")
		return
	}
	metrics.QueueBufferFileBytes.WithLabelValues(q.cfg.Name).Set(float64(size))
}

// clearBuffer truncates the buffer file to empty on a fully successful
// flush (spec §4.7: "on success, truncate the file").
func (q *Queue[T]) clearBuffer() {
	if q.cfg.BufferPath == "" {
		return
	}
	if err := os.Truncate(q.cfg.BufferPath, 0); err != nil && !os.IsNotExist(err) {
		q.cfg.Log.Warn().Err(err).Str("queue", q.cfg.Name).Msg("failed to truncate buffer file")
		return
	}
	metrics.QueueBufferFileBytes.WithLabelValues(q.cfg.Name).Set(0)
}
