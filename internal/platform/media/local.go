package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes media below a directory served at a public base URL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("media directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Dir is the root directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload implements Uploader. An existing object with the same key is reused.
func (s *LocalStore) Upload(ctx context.Context, name string, content []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := Key(name, content)
	target := filepath.Join(s.dir, filepath.FromSlash(key))

	if _, err := os.Stat(target); err == nil {
		return joinURL(s.baseURL, key), nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store media file: %w", err)
	}

	return joinURL(s.baseURL, key), nil
}
