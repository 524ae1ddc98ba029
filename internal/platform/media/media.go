// Package media stores uploaded media files and returns their public URLs.
// Object keys are content addressed, so uploading the same bytes twice
// yields the same URL.
package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/phrazzld/scry-decks/internal/config"
)

// Backend names accepted in configuration.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Uploader stores content and returns a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, path string, content []byte, contentType string) (string, error)
}

// Key derives the object key for content uploaded under name. The directory
// of name is kept and the file name is replaced by the BLAKE2b-256 digest
// of content, keeping the lower-cased extension.
func Key(name string, content []byte) string {
	sum := blake2b.Sum256(content)
	file := hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(name))

	dir := path.Dir(path.Clean("/" + name))
	return strings.TrimPrefix(path.Join(dir, file), "/")
}

// New builds the uploader selected by cfg.Backend.
func New(ctx context.Context, cfg config.MediaConfig) (Uploader, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case BackendGCS:
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
