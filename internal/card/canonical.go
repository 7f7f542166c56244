package card

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for golden-file comparison and
// content-addressed snapshots.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//  5. No null (returns error)
//
// Supported inputs: string, int, int64, bool, []any, map[string]any.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// SnapshotCards returns the canonical JSON representation of a card set,
// sorted by id. Used by the scenario harness for golden-file comparison:
// two repositories holding the same cards always snapshot identically,
// regardless of insertion order.
func SnapshotCards(cards []Card) ([]byte, error) {
	sorted := make([]Card, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	list := make([]any, len(sorted))
	for i, c := range sorted {
		list[i] = cardToCanonicalMap(c)
	}
	return MarshalCanonical(map[string]any{"cards": list})
}

// cardToCanonicalMap flattens a Card into plain map/slice values that
// MarshalCanonical accepts. Empty optional fields are omitted so snapshots
// stay small and stable.
func cardToCanonicalMap(c Card) map[string]any {
	m := map[string]any{
		"id":                        c.ID,
		"board_id":                  c.BoardID,
		"column_id":                 c.ColumnID,
		"content":                   c.Content,
		"kind":                      string(c.Kind),
		"is_anonymous":              c.IsAnonymous,
		"direct_reaction_count":     c.DirectReactionCount,
		"aggregated_reaction_count": c.AggregatedReactionCount,
	}
	if c.AuthorHash != "" {
		m["author_hash"] = c.AuthorHash
	}
	if c.AuthorName != "" {
		m["author_name"] = c.AuthorName
	}
	if c.CreatedSeq != 0 {
		m["created_seq"] = c.CreatedSeq
	}
	if c.ParentCardID != "" {
		m["parent_card_id"] = c.ParentCardID
	}
	if len(c.LinkedFeedbackIDs) > 0 {
		ids := make([]any, len(c.LinkedFeedbackIDs))
		for i, id := range c.LinkedFeedbackIDs {
			ids[i] = id
		}
		m["linked_feedback_ids"] = ids
	}
	return m
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// Canonical JSON sorts object keys by UTF-16 code units.
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// lessUTF16 compares two strings by UTF-16 code units.
func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization and without HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it.
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	return result, nil
}
