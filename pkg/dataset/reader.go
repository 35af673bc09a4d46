package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"unicode"
)

// Format is the encoding detected from the first non-blank input.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatJSONArray Format = "json"
	FormatJSONLines Format = "jsonl"
)

// Reader is a lazy, forward-only sequence of drafts. A structural problem
// stops it with a *ValidationError; records with blank text are skipped and
// counted.
type Reader struct {
	format  Format
	next    func() (record, error)
	pos     int
	skipped int
	read    int
	logger  *slog.Logger
}

// NewReader inspects the first non-blank character of r to pick the format:
// '[' is a JSON array, '{' is JSON lines, anything else is CSV with a header.
func NewReader(r io.Reader, logger *slog.Logger) (*Reader, error) {
	br := bufio.NewReader(r)
	first, err := skipBlank(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	rd := &Reader{logger: logger}
	switch {
	case errors.Is(err, io.EOF):
		rd.format = FormatJSONLines
		rd.next = func() (record, error) { return nil, io.EOF }
	case first == '[':
		rd.format = FormatJSONArray
		rd.next, err = jsonArray(br)
	case first == '{':
		rd.format = FormatJSONLines
		rd.next = jsonLines(br)
	default:
		rd.format = FormatCSV
		rd.next, err = csvRows(br)
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// skipBlank consumes leading whitespace and byte order marks and returns the
// first other rune without consuming it.
func skipBlank(br *bufio.Reader) (rune, error) {
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			return 0, err
		}
		if r == '\ufeff' || unicode.IsSpace(r) {
			continue
		}
		return r, br.UnreadRune()
	}
}

// Format returns the detected encoding.
func (r *Reader) Format() Format {
	return r.format
}

// Next returns the next draft, or io.EOF when the source is exhausted.
func (r *Reader) Next() (Draft, error) {
	for {
		rec, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Draft{}, io.EOF
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				err = &ValidationError{Record: r.pos + 1, Err: err}
			}
			return Draft{}, err
		}
		r.pos++

		d, blank, err := parse(r.pos, rec)
		if err != nil {
			return Draft{}, err
		}
		if blank {
			r.skipped++
			r.logger.Warn("skipping record with blank text", "record", r.pos, "id", d.ID)
			continue
		}
		r.read++
		return d, nil
	}
}

// All ranges over the remaining drafts. Iteration stops after the first error.
func (r *Reader) All() iter.Seq2[Draft, error] {
	return func(yield func(Draft, error) bool) {
		for {
			d, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(d, err) || err != nil {
				return
			}
		}
	}
}

// Skipped is the number of blank-text records passed over so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Read is the number of drafts returned so far.
func (r *Reader) Read() int {
	return r.read
}

func normalizeObject(obj map[string]any) record {
	rec := make(record, len(obj))
	for k, v := range obj {
		nk := normalizeKey(k)
		if _, dup := rec[nk]; !dup {
			rec[nk] = v
		}
	}
	return rec
}

func jsonArray(br *bufio.Reader) (func() (record, error), error) {
	dec := json.NewDecoder(br)
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, &ValidationError{Record: 0, Err: fmt.Errorf("opening json array: %w", err)}
	}

	done := false
	return func() (record, error) {
		if done {
			return nil, io.EOF
		}
		if !dec.More() {
			done = true
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("closing json array: %w", err)
			}
			return nil, io.EOF
		}
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("decoding json record: %w", err)
		}
		return normalizeObject(obj), nil
	}, nil
}

func jsonLines(br *bufio.Reader) func() (record, error) {
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return func() (record, error) {
		for sc.Scan() {
			line := bytes.TrimSpace(bytes.ReplaceAll(sc.Bytes(), []byte(bom), nil))
			if len(line) == 0 {
				continue
			}
			dec := json.NewDecoder(bytes.NewReader(line))
			dec.UseNumber()
			var obj map[string]any
			if err := dec.Decode(&obj); err != nil {
				return nil, fmt.Errorf("decoding json line: %w", err)
			}
			return normalizeObject(obj), nil
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

func csvRows(br *bufio.Reader) (func() (record, error), error) {
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, &ValidationError{Record: 0, Err: fmt.Errorf("reading csv header: %w", err)}
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = normalizeKey(h)
	}

	return func() (record, error) {
		row, err := cr.Read()
		if err != nil {
			return nil, err
		}
		rec := make(record, len(keys))
		for i, k := range keys {
			if i >= len(row) {
				break
			}
			if _, dup := rec[k]; !dup {
				rec[k] = row[i]
			}
		}
		return rec, nil
	}, nil
}
