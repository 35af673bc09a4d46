// Package fingerprint identifies dataset contents so an unchanged dataset
// is ingested once.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"

	"github.com/papercomputeco/corpus/pkg/storage"
)

// Compute returns the hex SHA-256 of everything read from r.
func Compute(r io.Reader) (string, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing dataset: %w", err)
	}
	return h.Sum(), nil
}

// Hasher is an io.Writer that fingerprints the bytes written to it, for
// hashing a source while it is being read.
type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the fingerprint of everything written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Guard consults and records seed history.
type Guard struct {
	history storage.SeedHistory
	logger  *slog.Logger
}

// NewGuard creates a Guard over history.
func NewGuard(history storage.SeedHistory, logger *slog.Logger) *Guard {
	return &Guard{history: history, logger: logger}
}

// ShouldSkip reports whether ingestion can be skipped because fp was already
// applied. reset always forces ingestion.
func (g *Guard) ShouldSkip(ctx context.Context, fp string, reset bool) (bool, error) {
	if reset {
		return false, nil
	}
	applied, err := g.history.HasSeed(ctx, fp)
	if err != nil {
		return false, err
	}
	if applied {
		g.logger.Info("dataset fingerprint already applied", "fingerprint", fp)
	}
	return applied, nil
}

// Record stores fp once the whole dataset has been ingested. Losing a race
// to another process is not an error.
func (g *Guard) Record(ctx context.Context, fp string) error {
	inserted, err := g.history.RecordSeed(ctx, fp)
	if err != nil {
		return err
	}
	if inserted {
		g.logger.Info("recorded dataset fingerprint", "fingerprint", fp)
	} else {
		g.logger.Debug("dataset fingerprint was recorded concurrently", "fingerprint", fp)
	}
	return nil
}
