// Package dataset reads corpus items from CSV, JSON array and JSON lines
// sources.
package dataset

import (
	"strings"

	"github.com/papercomputeco/corpus/pkg/storage"
)

// Draft is a validated dataset record, not yet stored.
type Draft struct {
	ID      int64
	Text    string
	Label   string
	LabelID int16
	Reason  *string
	Context *string
	Tags    []int
}

// Item converts the draft to a storage item without an embedding.
func (d Draft) Item() storage.Item {
	return storage.Item{
		ID:      d.ID,
		Text:    d.Text,
		Label:   d.Label,
		LabelID: d.LabelID,
		Reason:  d.Reason,
		Context: d.Context,
		Tags:    d.Tags,
	}
}

// NormalizeText trims s and collapses every internal whitespace run to a
// single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const bom = "\ufeff"

// normalizeKey strips byte order marks, trims and lowercases a field name.
func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(k, bom, "")))
}
