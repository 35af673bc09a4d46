// Package cache keeps computed embeddings in a bbolt file so reseeding the
// same texts does not call the embedding service again.
package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// Scope names the model whose vectors a cache holds. Each scope gets its own
// bucket, so switching models never serves stale vectors.
type Scope struct {
	Provider   string
	Model      string
	Dimensions int
}

func (s Scope) bucket() []byte {
	provider := s.Provider
	if provider == "" {
		provider = "http"
	}
	return []byte(fmt.Sprintf("vectors/%s/%s/%d", provider, s.Model, s.Dimensions))
}

// Store implements embeddings.Cache. Vectors live in one bucket per scope,
// keyed by the SHA-256 of the text.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ embeddings.Cache = (*Store)(nil)

// Open opens or creates the cache file at path for vectors of scope.
func Open(path string, scope Scope) (*Store, error) {
	if path == "" {
		return nil, errors.New("embedding cache path is required")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	bucket := scope.bucket()
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating embedding cache bucket: %w", err)
	}
	return &Store{db: db, bucket: bucket}, nil
}

func key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

func (s *Store) Lookup(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, t := range texts {
			raw := b.Get(key(t))
			if raw == nil {
				continue
			}
			v, err := vector.UnmarshalBlob(raw)
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}
	return out, nil
}

func (s *Store) Store(texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("embedding cache: %d texts for %d vectors", len(texts), len(vectors))
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, t := range texts {
			if vectors[i] == nil {
				continue
			}
			if err := b.Put(key(t), vector.MarshalBlob(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of cached vectors.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
