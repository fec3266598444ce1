package chunker_test

import (
	"math/rand"
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSlicePreservesOrderAndBound(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	chunks := chunker.ChunkSlice(items, 3)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2, 3}, chunks[0])
	assert.Equal(t, []int{4, 5, 6}, chunks[1])
	assert.Equal(t, []int{7}, chunks[2])
}

func TestChunkSliceNoLimit(t *testing.T) {
	items := []int{1, 2, 3}
	chunks := chunker.ChunkSlice(items, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, items, chunks[0])
}

func TestChunkSliceEmpty(t *testing.T) {
	assert.Nil(t, chunker.ChunkSlice[int](nil, 5))
}

func TestChunkMapRespectsBothQuotas(t *testing.T) {
	m := map[string][]int{
		"a": {1, 2, 3, 4, 5},
		"b": {6, 7},
	}
	chunks := chunker.ChunkMap(m, 3, 2)

	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 2)
		total := 0
		for _, vs := range c {
			total += len(vs)
		}
		require.LessOrEqual(t, total, 3)
	}

	// union of chunk contents equals the input, per-key order preserved.
	got := map[string][]int{}
	for _, c := range chunks {
		for k, vs := range c {
			got[k] = append(got[k], vs...)
		}
	}
	assert.Equal(t, m, got)
}

func TestChunkMapCompletenessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		numKeys := 1 + rng.Intn(8)
		m := make(map[string][]int)
		nextVal := 0
		for k := 0; k < numKeys; k++ {
			n := 1 + rng.Intn(5)
			vals := make([]int, n)
			for i := range vals {
				vals[i] = nextVal
				nextVal++
			}
			m[keyName(k)] = vals
		}

		maxValues := 1 + rng.Intn(8)
		maxKeys := 1 + rng.Intn(4)

		chunks := chunker.ChunkMap(m, maxValues, maxKeys)

		got := map[string][]int{}
		for _, c := range chunks {
			require.LessOrEqual(t, len(c), maxKeys)
			total := 0
			for _, vs := range c {
				total += len(vs)
			}
			require.LessOrEqual(t, total, maxValues)
			for k, vs := range c {
				got[k] = append(got[k], vs...)
			}
		}

		for k, vs := range m {
			assert.Equal(t, vs, got[k], "key %s order/content mismatch", k)
		}
		assert.Len(t, got, len(m))
	}
}

func keyName(i int) string {
	return string(rune('a' + i))
}
