// Package boltvec provides a bbolt-persisted dense vector index.
//
// Search is exact brute-force cosine similarity over an in-memory copy of
// the vectors; the bbolt file is the durable state reloaded on restart.
// Legal corpora are measured in tens of thousands of chunks, where exact
// search stays well under interactive latency.
package boltvec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var bucketVectors = []byte("vectors")

// Index is a bbolt-backed vector index.
type Index struct {
	db         *bbolt.DB
	dimensions int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// Open creates or reloads the vector index at dataDir/vectors.db.
// A file that cannot be decoded surfaces as domain.ErrIndexCorrupt; the
// caller is expected to rebuild from the chunk store.
func Open(dataDir string, dimensions int) (*Index, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, "vectors.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening vector index: %v", domain.ErrIndexCorrupt, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vectors bucket: %w", err)
	}

	idx := &Index{
		db:         db,
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
	}

	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: loading vectors: %v", domain.ErrIndexCorrupt, err)
	}

	return idx, nil
}

// load reads every persisted vector into memory.
func (idx *Index) load() error {
	return idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", string(k), err)
			}
			if idx.dimensions > 0 && len(vec) != idx.dimensions {
				return fmt.Errorf("chunk %s: dimension %d, want %d", string(k), len(vec), idx.dimensions)
			}
			idx.vectors[string(k)] = vec
			return nil
		})
	})
}

// Add inserts a vector for the given chunk ID.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if idx.dimensions > 0 && len(embedding) != idx.dimensions {
		return fmt.Errorf("%w: vector dimension %d, index expects %d",
			domain.ErrInvalidInput, len(embedding), idx.dimensions)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Put([]byte(chunkID), encodeVector(embedding))
	})
	if err != nil {
		return fmt.Errorf("persist vector %s: %w", chunkID, err)
	}

	idx.vectors[chunkID] = embedding
	return nil
}

// Delete removes a vector from the index.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Delete([]byte(chunkID))
	})
	if err != nil {
		return fmt.Errorf("delete vector %s: %w", chunkID, err)
	}

	delete(idx.vectors, chunkID)
	return nil
}

// Search returns the k nearest chunks by cosine similarity.
// An empty index returns an empty list, not an error. Equal similarities
// are ordered by chunk ID so repeated queries rank identically.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if idx.dimensions > 0 && len(query) != idx.dimensions {
		return nil, fmt.Errorf("%w: query dimension %d, index expects %d",
			domain.ErrInvalidInput, len(query), idx.dimensions)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 || k <= 0 {
		return []driven.VectorHit{}, nil
	}

	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: cosineSimilarity(query, vec),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Reset drops all vectors, in preparation for a rebuild.
func (idx *Index) Reset(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset vector index: %w", err)
	}

	idx.vectors = make(map[string][]float32)
	return nil
}

// Close flushes and closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("truncated vector value (%d bytes)", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

// cosineSimilarity computes similarity between two equal-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
