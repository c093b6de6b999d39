package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"nebularag/internal/port"
)

var bucketEmbeddings = []byte("embeddings")

// EmbedCache wraps an Embedder and memoizes its vectors in a BoltDB file,
// keyed by model and text. Re-running the tool over an unchanged corpus then
// embeds only the question. The similarity index itself is never persisted;
// only provider responses are.
type EmbedCache struct {
	inner port.Embedder
	db    *bbolt.DB
}

// Open opens (or creates) the cache database at path and wraps inner.
func Open(path string, inner port.Embedder) (*EmbedCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}
	return &EmbedCache{inner: inner, db: db}, nil
}

// Embed serves cached vectors where possible and embeds only the misses,
// preserving input order. A batch with any provider failure caches nothing
// new and returns the error.
func (c *EmbedCache) Embed(texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	var missIdx []int

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, text := range texts {
			data := b.Get(c.key(text))
			if data == nil {
				missIdx = append(missIdx, i)
				continue
			}
			var emb []float64
			if err := json.Unmarshal(data, &emb); err != nil {
				// corrupted entry, treat as a miss
				missIdx = append(missIdx, i)
				continue
			}
			out[i] = emb
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for i, idx := range missIdx {
		missTexts[i] = texts[idx]
	}

	fresh, err := c.inner.Embed(missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, idx := range missIdx {
			out[idx] = fresh[i]
			data, err := json.Marshal(fresh[i])
			if err != nil {
				return err
			}
			if err := b.Put(c.key(texts[idx]), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}

	return out, nil
}

// ModelName reports the wrapped embedder's model.
func (c *EmbedCache) ModelName() string {
	return c.inner.ModelName()
}

// Close closes the underlying database.
func (c *EmbedCache) Close() error {
	return c.db.Close()
}

func (c *EmbedCache) key(text string) []byte {
	h := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return h[:]
}
