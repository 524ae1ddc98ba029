package media

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// objectWriter opens a writer for one object in a bucket.
type objectWriter interface {
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
}

type bucketWriter struct {
	bucket *storage.BucketHandle
}

func (b bucketWriter) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	return w
}

// GCSStore uploads media to a Google Cloud Storage bucket.
type GCSStore struct {
	writer  objectWriter
	client  *storage.Client
	prefix  string
	baseURL string
}

// NewGCSStore connects with application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, baseURL string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		writer:  bucketWriter{bucket: client.Bucket(bucket)},
		client:  client,
		prefix:  prefix,
		baseURL: baseURL,
	}, nil
}

// Upload implements Uploader.
func (s *GCSStore) Upload(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	object := path.Join(s.prefix, Key(name, content))

	w := s.writer.NewWriter(ctx, object, contentType)
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", object, err)
	}

	return joinURL(s.baseURL, object), nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
