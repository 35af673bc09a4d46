package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/papercomputeco/corpus/pkg/vector"
)

// Shape selects how EmbedServer encodes its responses.
type Shape int

const (
	// ShapeLabelled answers {"embeddings": [[...]]} and {"embedding": [...]}.
	ShapeLabelled Shape = iota

	// ShapeArray answers [[...]] and [...].
	ShapeArray

	// ShapeRecords answers [{"embedding": [...]}].
	ShapeRecords

	// ShapeData answers {"data": [{"embedding": [...]}]} for both endpoints.
	ShapeData

	// ShapeLiteral answers {"embeddings": ["[...]"]} and {"embedding": "[...]"}.
	ShapeLiteral
)

// EmbedServer is an httptest embedding service with /embed and /embed-batch.
type EmbedServer struct {
	*httptest.Server

	Dims  int
	Shape Shape

	// Degenerate makes /embed-batch return the first vector for every text.
	Degenerate atomic.Bool

	// BatchDown makes /embed-batch answer 503.
	BatchDown atomic.Bool

	// AllDown makes both endpoints answer 503.
	AllDown atomic.Bool

	// Garbage makes /embed-batch answer an unparsable body.
	Garbage atomic.Bool

	BatchCalls  atomic.Int64
	SingleCalls atomic.Int64
}

// NewEmbedServer starts a server producing HashEmbedding vectors of dims.
func NewEmbedServer(dims int, shape Shape) *EmbedServer {
	s := &EmbedServer{Dims: dims, Shape: shape}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /embed-batch", s.handleBatch)
	mux.HandleFunc("POST /embed", s.handleSingle)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *EmbedServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	s.BatchCalls.Add(1)
	if s.AllDown.Load() || s.BatchDown.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if s.Garbage.Load() {
		w.Write([]byte("<html>oops</html>"))
		return
	}

	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Texts) == 0 {
		http.Error(w, "Provide 'texts'", http.StatusBadRequest)
		return
	}

	vecs := make([][]float32, len(req.Texts))
	for i, t := range req.Texts {
		if s.Degenerate.Load() {
			t = req.Texts[0]
		}
		vecs[i] = HashEmbedding(t, s.Dims)
	}

	var body any
	switch s.Shape {
	case ShapeArray:
		body = vecs
	case ShapeRecords:
		body = records(vecs)
	case ShapeData:
		body = map[string]any{"data": records(vecs)}
	case ShapeLiteral:
		lits := make([]string, len(vecs))
		for i, v := range vecs {
			lits[i] = vector.Encode(v)
		}
		body = map[string]any{"embeddings": lits}
	default:
		body = map[string]any{"embeddings": vecs}
	}
	writeJSON(w, body)
}

func (s *EmbedServer) handleSingle(w http.ResponseWriter, r *http.Request) {
	s.SingleCalls.Add(1)
	if s.AllDown.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "Provide 'text'", http.StatusBadRequest)
		return
	}

	v := HashEmbedding(req.Text, s.Dims)
	var body any
	switch s.Shape {
	case ShapeArray:
		body = v
	case ShapeRecords:
		body = records([][]float32{v})
	case ShapeData:
		body = map[string]any{"data": records([][]float32{v})}
	case ShapeLiteral:
		body = map[string]any{"embedding": vector.Encode(v)}
	default:
		body = map[string]any{"embedding": v}
	}
	writeJSON(w, body)
}

func records(vecs [][]float32) []map[string]any {
	out := make([]map[string]any, len(vecs))
	for i, v := range vecs {
		out[i] = map[string]any{"index": i, "embedding": v}
	}
	return out
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
