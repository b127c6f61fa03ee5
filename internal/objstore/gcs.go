package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore stores objects in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore connects to bucket using application default credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

func (s *GCSStore) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", s.URI(path), ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.URI(path), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URI(path), err)
	}
	return data, nil
}

func (s *GCSStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if _, err := cleanPath(path); err != nil {
		return err
	}
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", s.URI(path), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", s.URI(path), err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", s.URI(path), err)
	}
	return true, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.name, prefix, err)
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *GCSStore) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, path)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
