package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode renders v as the bracketed literal "[v1,v2,...]" accepted by
// pgvector and sqlite-vec. Each element uses the shortest representation that
// round-trips through float32.
func Encode(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Decode parses a literal produced by Encode. Surrounding whitespace, spaces
// around elements and curly braces (array literal style) are tolerated.
func Decode(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	open, end := s[0], s[len(s)-1]
	if !(open == '[' && end == ']') && !(open == '{' && end == '}') {
		return nil, fmt.Errorf("%w: %q is not bracketed", ErrMalformed, s)
	}

	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}

	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// DecodeValue converts whatever a driver or a JSON document handed back into
// a vector: native float slices, generic slices of numbers, or a literal as a
// string or byte slice.
func DecodeValue(v any) ([]float32, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []float32:
		return t, nil
	case []float64:
		out := make([]float32, len(t))
		for i, f := range t {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrMalformed, i, e)
			}
			out[i] = f
		}
		return out, nil
	case string:
		return Decode(t)
	case []byte:
		return Decode(string(t))
	case json.RawMessage:
		return Decode(string(t))
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformed, v)
	}
}

func toFloat(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 32)
		return float32(f), err == nil
	default:
		return 0, false
	}
}

// CheckDimension returns ErrDimension when dim is positive and v has another length.
func CheckDimension(v []float32, dim int) error {
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(v), dim)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// MarshalBlob packs v as little-endian float32s, the sqlite-vec blob layout.
func MarshalBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// UnmarshalBlob is the inverse of MarshalBlob.
func UnmarshalBlob(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrMalformed, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
