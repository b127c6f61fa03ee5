package models

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// Object is a JSON object that remembers the order its keys were first set in.
// Nested objects decode as *Object, arrays as []any and numbers as json.Number,
// so a document can be read, patched and written back without reordering.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ParseObject decodes a JSON document whose top level must be an object.
func ParseObject(data []byte) (*Object, error) {
	o := NewObject()
	if err := o.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[key]
	return ok
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key. An existing key keeps its position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Delete removes key if present.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// MoveToEnd re-inserts key as the last key, keeping its value.
func (o *Object) MoveToEnd(key string) {
	v, ok := o.values[key]
	if !ok {
		return
	}
	o.Delete(key)
	o.Set(key, v)
}

// Merge copies every key of src into o, replacing same-named values in place
// and appending new keys in src order.
func (o *Object) Merge(src *Object) {
	if src == nil {
		return
	}
	for _, k := range src.keys {
		o.Set(k, src.values[k])
	}
}

// Clone returns a shallow copy.
func (o *Object) Clone() *Object {
	c := NewObject()
	if o == nil {
		return c
	}
	c.keys = append(c.keys, o.keys...)
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

// String returns the string stored under key, or "" when missing or not a string.
func (o *Object) String(key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

// Int returns the integer stored under key. Numbers, numeric strings and
// whole floats are accepted.
func (o *Object) Int(key string) (int, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// MarshalJSON writes keys in insertion order without HTML escaping.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoHTML(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalNoHTML(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces o's content with the decoded object.
func (o *Object) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON document")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	o := NewObject()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return o, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		o.Set(key, val)
	}
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for {
		if !dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if d, ok := tok.(json.Delim); ok && d == ']' {
				return arr, nil
			}
			return nil, fmt.Errorf("expected end of array, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		// the decoder's number token may alias its read buffer
		return json.Number(strings.Clone(string(t))), nil
	default:
		return t, nil
	}
}

func marshalNoHTML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
