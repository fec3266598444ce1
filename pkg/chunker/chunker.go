// Package chunker splits logical write requests into endpoint-compliant
// sub-requests, by item count and by a two-dimensional key/value quota
// (spec §4.1). Both entry points are pure functions: no goroutines, no
// I/O, safe to call inline on the caller's goroutine.
package chunker

// ChunkSlice splits items into contiguous chunks of at most maxItems each,
// preserving order. The last chunk may be smaller. maxItems <= 0 returns
// the whole input as a single chunk.
func ChunkSlice[T any](items []T, maxItems int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if maxItems <= 0 || maxItems >= len(items) {
		return [][]T{items}
	}

	out := make([][]T, 0, (len(items)+maxItems-1)/maxItems)
	for start := 0; start < len(items); start += maxItems {
		end := start + maxItems
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// chunkBuilder accumulates keys into the chunk currently being packed.
type chunkBuilder[K comparable, V any] struct {
	keys   int
	values int
	chunk  map[K][]V
}

func newChunkBuilder[K comparable, V any]() *chunkBuilder[K, V] {
	return &chunkBuilder[K, V]{chunk: make(map[K][]V)}
}

// ChunkMap bin-packs a map of per-key value sequences into chunks such
// that every chunk has at most maxKeysPerChunk keys and at most
// maxValuesPerChunk total values, a single key's values may be split
// across multiple chunks when the key alone doesn't fit, and every value
// in the input appears in exactly one output chunk (spec §4.1).
//
// Key iteration order (and therefore chunk assignment) is unspecified, as
// permitted by the spec; Go's map iteration order is itself randomized,
// which is sufficient.
func ChunkMap[K comparable, V any](m map[K][]V, maxValuesPerChunk, maxKeysPerChunk int) []map[K][]V {
	if len(m) == 0 {
		return nil
	}

	var chunks []map[K][]V
	cur := newChunkBuilder[K, V]()

	flush := func() {
		if cur.keys > 0 {
			chunks = append(chunks, cur.chunk)
		}
		cur = newChunkBuilder[K, V]()
	}

	for k, values := range m {
		remaining := values
		for len(remaining) > 0 {
			_, continuingKey := cur.chunk[k]

			// No room for a new key in the current chunk: start a fresh one.
			if !continuingKey && maxKeysPerChunk > 0 && cur.keys >= maxKeysPerChunk {
				flush()
				continuingKey = false
			}

			// No value budget left in the current chunk: start a fresh one,
			// unless it's still empty (a single chunk must make progress).
			if maxValuesPerChunk > 0 && cur.values >= maxValuesPerChunk && cur.values > 0 {
				flush()
				continuingKey = false
			}

			take := len(remaining)
			if maxValuesPerChunk > 0 {
				budget := maxValuesPerChunk - cur.values
				if budget < 1 {
					budget = 1 // guarantee progress on a fresh, empty chunk
				}
				if take > budget {
					take = budget
				}
			}

			if !continuingKey {
				cur.keys++
			}
			cur.chunk[k] = append(cur.chunk[k], remaining[:take]...)
			cur.values += take
			remaining = remaining[take:]
		}
	}
	flush()

	return chunks
}
