package httpembed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/corpus/pkg/vector"
)

// ErrUnrecognized is returned when no known response shape matches.
var ErrUnrecognized = errors.New("unrecognized embedding response")

// vectorKeys name the field holding a vector inside a record or a
// single-vector document.
var vectorKeys = []string{"embedding", "vector", "values"}

// listKeys name the field holding the list of vectors or records.
var listKeys = []string{"embeddings", "vectors", "data"}

// shape tries to read n vectors out of a decoded document. ok is false when
// the document does not have this shape at all.
type shape struct {
	name  string
	match func(doc any, n int) (vecs [][]float32, ok bool)
}

// shapes are tried in order and the first match wins.
var shapes = []shape{
	{"array of vectors", arrayOfVectors},
	{"array of records", arrayOfRecords},
	{"labelled array", labelledArray},
	{"single vector", singleVector},
}

// ParseResponse decodes an embedding service response expected to carry n
// vectors. Elements may be numbers or a textual vector literal.
func ParseResponse(body []byte, n int) ([][]float32, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrecognized, err)
	}

	for _, s := range shapes {
		if vecs, ok := s.match(doc, n); ok {
			return vecs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnrecognized, preview(body))
}

// asVector accepts a numeric array or a literal string. Arrays whose first
// element is itself an array are rejected so nesting levels do not blur.
func asVector(v any) ([]float32, bool) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		if _, nested := t[0].([]any); nested {
			return nil, false
		}
	case string:
	default:
		return nil, false
	}
	vec, err := vector.DecodeValue(v)
	if err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func fromRecord(v any) ([]float32, bool) {
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, k := range vectorKeys {
		if field, ok := rec[k]; ok {
			return asVector(field)
		}
	}
	return nil, false
}

func eachVector(list []any, read func(any) ([]float32, bool)) ([][]float32, bool) {
	if len(list) == 0 {
		return nil, false
	}
	out := make([][]float32, len(list))
	for i, e := range list {
		v, ok := read(e)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// [[...], [...]]
func arrayOfVectors(doc any, _ int) ([][]float32, bool) {
	list, ok := doc.([]any)
	if !ok {
		return nil, false
	}
	return eachVector(list, asVector)
}

// [{"embedding": [...]}, ...]
func arrayOfRecords(doc any, _ int) ([][]float32, bool) {
	list, ok := doc.([]any)
	if !ok {
		return nil, false
	}
	return eachVector(list, fromRecord)
}

// {"embeddings": [[...]]}, {"vectors": [...]}, {"data": [{"embedding": [...]}]}
func labelledArray(doc any, _ int) ([][]float32, bool) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, k := range listKeys {
		list, ok := obj[k].([]any)
		if !ok {
			continue
		}
		if vecs, ok := eachVector(list, asVector); ok {
			return vecs, true
		}
		if vecs, ok := eachVector(list, fromRecord); ok {
			return vecs, true
		}
	}
	return nil, false
}

// {"embedding": [...]}, {"embeddings": [...]}, {"embeddings": "[...]"} or a
// flat [...], only when one vector is expected.
func singleVector(doc any, n int) ([][]float32, bool) {
	if n != 1 {
		return nil, false
	}
	if v, ok := asVector(doc); ok {
		return [][]float32{v}, true
	}
	if v, ok := fromRecord(doc); ok {
		return [][]float32{v}, true
	}
	if obj, ok := doc.(map[string]any); ok {
		for _, k := range listKeys {
			if v, ok := asVector(obj[k]); ok {
				return [][]float32{v}, true
			}
		}
	}
	return nil, false
}
