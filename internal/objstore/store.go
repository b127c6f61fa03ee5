// Package objstore provides the object storage gateway for interview artifacts.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNotExist is returned when an object is absent.
var ErrNotExist = errors.New("object does not exist")

// ContentTypeJSON is used for every JSON artifact.
const ContentTypeJSON = "application/json"

// Store reads and writes whole objects by slash-separated path.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	// URI returns the canonical address of path, such as gs://bucket/path.
	URI(path string) string
	Close() error
}

// GetJSON loads path and decodes it into v.
func GetJSON(ctx context.Context, s Store, path string, v any) error {
	data, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// PutJSON encodes v as indented UTF-8 JSON and writes it to path.
func PutJSON(ctx context.Context, s Store, path string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Put(ctx, path, data, ContentTypeJSON)
}

// EncodeJSON renders v with two-space indentation and no HTML escaping.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cleanPath rejects empty, absolute and parent-relative paths.
func cleanPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid object path %q", path)
		}
	}
	return p, nil
}
