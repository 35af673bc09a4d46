// Package qdrant mirrors item embeddings into a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/corpus/pkg/vector"
)

const defaultPort = 6334

// Config holds configuration for the Qdrant index.
type Config struct {
	// Target is host, host:port or a URL such as "http://qdrant:6334".
	Target string

	// Collection is the collection name. Defaults to "rag_items".
	Collection string

	// Dimensions is the embedding dimension used when creating the collection.
	Dimensions int

	// APIKey is sent with every request when set.
	APIKey string
}

// Index implements vector.Index using Qdrant.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *slog.Logger
}

var _ vector.Index = (*Index)(nil)

// New connects to Qdrant and ensures the collection exists.
func New(ctx context.Context, c Config, logger *slog.Logger) (*Index, error) {
	if c.Dimensions <= 0 {
		return nil, errors.New("qdrant collection dimensions must be configured")
	}
	host, port, useTLS, err := parseTarget(c.Target)
	if err != nil {
		return nil, err
	}
	if c.Collection == "" {
		c.Collection = "rag_items"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	idx := &Index{
		client:     client,
		collection: c.Collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("qdrant index initialized",
		"host", host,
		"port", port,
		"collection", c.Collection,
		"dimensions", c.Dimensions,
	)
	return idx, nil
}

func parseTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "localhost", defaultPort, false, nil
	}

	useTLS := false
	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		hostport = u.Host
		useTLS = u.Scheme == "https"
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort, useTLS, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, useTLS, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}
	return nil
}

// Upsert writes points and waits until they are searchable.
func (i *Index) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if p.ID < 0 {
			return fmt.Errorf("qdrant point ids must be non-negative, got %d", p.ID)
		}
		if err := vector.CheckDimension(p.Embedding, i.dimensions); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
		})
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	i.logger.Debug("upserted points into qdrant", "count", len(points))
	return nil
}

// Query returns the k nearest points by cosine similarity.
func (i *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	scored, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          qdrant.PtrOf(uint64(k)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	matches := make([]vector.Match, 0, len(scored))
	for _, sp := range scored {
		matches = append(matches, vector.Match{
			ID:    int64(sp.GetId().GetNum()),
			Score: sp.GetScore(),
		})
	}
	return matches, nil
}

// Reset deletes and recreates the collection.
func (i *Index) Reset(ctx context.Context) error {
	if err := i.client.DeleteCollection(ctx, i.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", i.collection, err)
	}
	return i.ensureCollection(ctx)
}

// Close closes the gRPC connections.
func (i *Index) Close() error {
	return i.client.Close()
}
