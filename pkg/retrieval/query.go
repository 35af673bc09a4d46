package retrieval

import (
	"bytes"
	"encoding/json"
	"strings"
)

// QueryText derives the text to search for from a raw query payload. A JSON
// array of {speaker, message} turns becomes "speaker: message" turns joined
// by single spaces, with the speaker prefix dropped when empty and turns
// whose fields are both empty skipped. Anything else, including an array
// that yields no text, is used verbatim.
func QueryText(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "[") {
		return payload
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &elems); err != nil {
		return payload
	}

	var sb strings.Builder
	for _, raw := range elems {
		speaker, message := turnFields(raw)
		if speaker == "" && message == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if speaker != "" {
			sb.WriteString(speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(message)
	}

	merged := strings.TrimSpace(sb.String())
	if merged == "" {
		return payload
	}
	return merged
}

// turnFields reads speaker and message from one array element. Elements that
// are not objects have neither.
func turnFields(raw json.RawMessage) (string, string) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return "", ""
	}
	return scalarText(obj["speaker"]), scalarText(obj["message"])
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
