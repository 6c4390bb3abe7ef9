// Package boltbm25 provides a bbolt-persisted sparse lexical index with
// BM25 ranking over chunk tokens.
package boltbm25

import (
	"context"
	"encoding/json"
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
var _ driven.SearchEngine = (*Index)(nil)

// BM25 parameters. K1 saturates term frequency, B normalises for chunk
// length.
const (
	k1 = 1.5
	b  = 0.75
)

var (
	bucketPostings = []byte("postings")
	bucketDocLens  = []byte("doclens")
)

// Index is a bbolt-backed inverted index.
//
// On-disk layout: the postings bucket maps term -> JSON {chunkID: tf};
// the doclens bucket maps chunkID -> JSON token count. Both are mirrored
// in memory for scoring; bbolt is the durable state reloaded on restart.
type Index struct {
	db *bbolt.DB

	mu       sync.RWMutex
	postings map[string]map[string]int // term -> chunkID -> tf
	docLens  map[string]int            // chunkID -> token count
	totalLen int
}

// Open creates or reloads the sparse index at dataDir/postings.db.
func Open(dataDir string) (*Index, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, "postings.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sparse index: %v", domain.ErrIndexCorrupt, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPostings); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketDocLens)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index buckets: %w", err)
	}

	idx := &Index{
		db:       db,
		postings: make(map[string]map[string]int),
		docLens:  make(map[string]int),
	}

	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: loading postings: %v", domain.ErrIndexCorrupt, err)
	}

	return idx, nil
}

func (idx *Index) load() error {
	return idx.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketPostings).ForEach(func(k, v []byte) error {
			var entry map[string]int
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("term %q: %w", string(k), err)
			}
			idx.postings[string(k)] = entry
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketDocLens).ForEach(func(k, v []byte) error {
			var n int
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("chunk %q: %w", string(k), err)
			}
			idx.docLens[string(k)] = n
			idx.totalLen += n
			return nil
		})
	})
}

// Index adds or replaces the postings for a chunk.
func (idx *Index) Index(_ context.Context, chunkID string, tokens []string) error {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Replace semantics: clear any previous postings for this chunk first.
	if err := idx.removeLocked(chunkID); err != nil {
		return err
	}

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		pb := tx.Bucket(bucketPostings)
		for term, count := range tf {
			entry := idx.postings[term]
			if entry == nil {
				entry = make(map[string]int)
				idx.postings[term] = entry
			}
			entry[chunkID] = count

			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := pb.Put([]byte(term), data); err != nil {
				return err
			}
		}

		lenData, err := json.Marshal(len(tokens))
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocLens).Put([]byte(chunkID), lenData)
	})
	if err != nil {
		return fmt.Errorf("index chunk %s: %w", chunkID, err)
	}

	idx.docLens[chunkID] = len(tokens)
	idx.totalLen += len(tokens)
	return nil
}

// Delete removes a chunk from the postings.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeLocked(chunkID)
}

// removeLocked deletes a chunk's postings and length. Caller holds mu.
func (idx *Index) removeLocked(chunkID string) error {
	if _, ok := idx.docLens[chunkID]; !ok {
		return nil
	}

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		pb := tx.Bucket(bucketPostings)
		for term, entry := range idx.postings {
			if _, ok := entry[chunkID]; !ok {
				continue
			}
			delete(entry, chunkID)
			if len(entry) == 0 {
				delete(idx.postings, term)
				if err := pb.Delete([]byte(term)); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := pb.Put([]byte(term), data); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketDocLens).Delete([]byte(chunkID))
	})
	if err != nil {
		return fmt.Errorf("remove chunk %s: %w", chunkID, err)
	}

	idx.totalLen -= idx.docLens[chunkID]
	delete(idx.docLens, chunkID)
	return nil
}

// Search ranks chunks against the query tokens with BM25.
// Only chunks containing at least one query term are candidates. Equal
// scores are ordered by chunk ID so repeated queries rank identically.
func (idx *Index) Search(_ context.Context, tokens []string, limit int) ([]driven.SearchHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLens)
	if n == 0 || len(tokens) == 0 || limit <= 0 {
		return []driven.SearchHit{}, nil
	}

	avgLen := float64(idx.totalLen) / float64(n)
	scores := make(map[string]float64)

	for _, term := range tokens {
		entry, ok := idx.postings[term]
		if !ok {
			continue
		}

		df := len(entry)
		idf := math.Log(1.0 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for chunkID, tf := range entry {
			docLen := float64(idx.docLens[chunkID])
			num := float64(tf) * (k1 + 1.0)
			den := float64(tf) + k1*(1.0-b+b*(docLen/avgLen))
			scores[chunkID] += idf * (num / den)
		}
	}

	hits := make([]driven.SearchHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.SearchHit{ChunkID: chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLens)
}

// Reset drops all postings, in preparation for a rebuild.
func (idx *Index) Reset(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPostings, bucketDocLens} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset sparse index: %w", err)
	}

	idx.postings = make(map[string]map[string]int)
	idx.docLens = make(map[string]int)
	idx.totalLen = 0
	return nil
}

// Close flushes and closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}
