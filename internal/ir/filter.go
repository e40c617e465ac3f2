package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Reserved filter keys. Directives never become predicates.
const (
	DirectiveOrderBy = "orderBy"
	DirectiveLimit   = "limit"

	// RangeStart and RangeEnd are the keys of a datetime range sub-map.
	RangeStart = "startDate"
	RangeEnd   = "endDate"

	// OrPrefix on a string value combines the predicate with OR instead of AND.
	OrPrefix = "|"
)

// ErrFilterNotObject is returned when a filter document is not a key/value mapping.
var ErrFilterNotObject = errors.New("filter must be an object")

// FilterEntry is a single key/value pair of a FilterMap.
type FilterEntry struct {
	Key   string
	Value any
}

// Entry is a shorthand for constructing a FilterEntry.
// Example: NewFilterMap(Entry("limit", "30"), Entry("title", "Hello"))
func Entry(key string, value any) FilterEntry {
	return FilterEntry{Key: key, Value: value}
}

// FilterMap is an insertion-ordered mapping from filter key to value.
//
// Values are strings, json.Number or native numbers, booleans, nil, []any,
// or nested *FilterMap (date ranges and orderBy).
//
// Go maps do not preserve order, and entry order decides both clause order
// and placeholder numbering, so filters are never held in map[string]any.
type FilterMap struct {
	entries []FilterEntry
}

// NewFilterMap creates a FilterMap holding entries in order.
// A repeated key keeps its first position and takes the last value.
func NewFilterMap(entries ...FilterEntry) *FilterMap {
	m := &FilterMap{}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Set assigns value to key. Existing keys keep their position.
func (m *FilterMap) Set(key string, value any) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = value
			return
		}
	}
	m.entries = append(m.entries, FilterEntry{Key: key, Value: value})
}

// Get returns the value for key.
func (m *FilterMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries. A nil FilterMap is empty.
func (m *FilterMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in insertion order.
func (m *FilterMap) Entries() []FilterEntry {
	if m == nil {
		return nil
	}
	out := make([]FilterEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Keys returns the keys in insertion order.
func (m *FilterMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// ParseFilterJSON decodes a JSON object into a FilterMap, keeping key order.
func ParseFilterJSON(data []byte) (*FilterMap, error) {
	m := &FilterMap{}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalJSON implements json.Unmarshaler.
// Numbers decode as json.Number so "1" and 1 both reach the compiler unmangled.
func (m *FilterMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrFilterNotObject
	}

	decoded, err := decodeJSONObject(dec)
	if err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}
	*m = *decoded

	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("decode filter: trailing data after object")
	}
	return nil
}

// decodeJSONObject reads key/value pairs up to and including the closing brace.
// The opening brace must already be consumed.
func decodeJSONObject(dec *json.Decoder) (*FilterMap, error) {
	m := &FilterMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeJSONValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		m.Set(norm.NFC.String(key), val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil // string, json.Number, bool or nil
	}

	switch delim {
	case '{':
		return decodeJSONObject(dec)
	case '[':
		var arr []any
		for dec.More() {
			elem, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		if arr == nil {
			arr = []any{}
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (m *FilterMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. yaml.Node keeps mapping order,
// which a plain map decode would lose.
func (m *FilterMap) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := decodeYAMLMapping(node)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

func decodeYAMLMapping(node *yaml.Node) (*FilterMap, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %w", node.Line, ErrFilterNotObject)
	}

	m := &FilterMap{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		val, err := decodeYAMLValue(valNode)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		m.Set(norm.NFC.String(keyNode.Value), val)
	}
	return m, nil
}

func decodeYAMLValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return decodeYAMLMapping(node)
	case yaml.SequenceNode:
		arr := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			elem, err := decodeYAMLValue(child)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case yaml.AliasNode:
		return decodeYAMLValue(node.Alias)
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
}
