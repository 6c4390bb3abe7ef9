package boltvec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

func openTestIndex(t *testing.T, dims int) *Index {
	t.Helper()
	idx, err := Open(t.TempDir(), dims)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := openTestIndex(t, 3)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAddAndSearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 3)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0.9, 0.1, 0}))
	require.NoError(t, idx.Add(ctx, "c", []float32{0, 1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
	assert.Equal(t, "c", hits[2].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestSearchLimitsToK(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1}))
	require.NoError(t, idx.Add(ctx, "c", []float32{1, 1}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 3)

	err := idx.Add(ctx, "a", []float32{1, 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := Open(dir, 2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "a", []float32{0.5, 0.5}))
	require.NoError(t, idx.Add(ctx, "b", []float32{1, 0}))
	require.NoError(t, idx.Close())

	reopened, err := Open(dir, 2)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Count())

	hits, err := reopened.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ChunkID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Delete(ctx, "a"))

	assert.Equal(t, 0, idx.Count())
	hits, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, 0, idx.Count())

	// The index stays usable after a reset.
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1}))
	assert.Equal(t, 1, idx.Count())
}

func TestTieBrokenByChunkID(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, 2)

	// Identical vectors produce identical similarities.
	require.NoError(t, idx.Add(ctx, "z", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "z", hits[1].ChunkID)
}
