package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// record is one source row with normalized keys. Values are strings for
// CSV rows and decoded JSON values for JSON rows.
type record map[string]any

func (r record) lookup(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// parse validates a record into a draft. blank is true when the normalized
// text is empty, in which case the draft must be skipped.
func parse(pos int, r record) (d Draft, blank bool, err error) {
	fail := func(field string, err error) (Draft, bool, error) {
		return Draft{}, false, &ValidationError{Record: pos, Field: field, Err: err}
	}

	id, err := requiredInt(r, "id", math.MinInt64, math.MaxInt64)
	if err != nil {
		return fail("id", err)
	}
	d.ID = id

	text, ok := r.lookup("text")
	if !ok {
		return fail("text", ErrMissingField)
	}
	d.Text = NormalizeText(asString(text))

	label, ok := r.lookup("label")
	if !ok {
		return fail("label", ErrMissingField)
	}
	d.Label = asString(label)

	labelID, err := requiredInt(r, "label_id", math.MinInt16, math.MaxInt16)
	if err != nil {
		return fail("label_id", err)
	}
	d.LabelID = int16(labelID)

	d.Reason = optionalString(r, "reason")
	d.Context = optionalString(r, "context")

	if v, ok := r.lookup("tags"); ok {
		if d.Tags, err = parseTagsValue(v); err != nil {
			return fail("tags", err)
		}
	}

	return d, d.Text == "", nil
}

func requiredInt(r record, key string, lo, hi int64) (int64, error) {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return 0, ErrMissingField
	}
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return 0, ErrMissingField
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidNumber, n)
	}
	return n, nil
}

// optionalString returns nil for absent, null and empty values.
func optionalString(r record, key string) *string {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return nil
	}
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func parseTagsValue(v any) ([]int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		tags := make([]int, len(t))
		for i, e := range t {
			n, err := parseTag(asString(e))
			if err != nil {
				return nil, err
			}
			tags[i] = n
		}
		return tags, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return ParseTags(t)
	default:
		return nil, fmt.Errorf("%w: tags must be a list, got %s", ErrInvalidNumber, asString(t))
	}
}

// ParseTags reads a bracketed comma separated list such as "[1, 2]" or the
// array literal "{1,2}". Empty brackets give an empty, non-nil list.
func ParseTags(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '[' && s[len(s)-1] == ']' || s[0] == '{' && s[len(s)-1] == '}') {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return []int{}, nil
	}

	parts := strings.Split(s, ",")
	tags := make([]int, len(parts))
	for i, p := range parts {
		n, err := parseTag(p)
		if err != nil {
			return nil, err
		}
		tags[i] = n
	}
	return tags, nil
}

func parseTag(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: tag %q", ErrInvalidNumber, s)
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: tag %d out of range", ErrInvalidNumber, n)
	}
	return n, nil
}
