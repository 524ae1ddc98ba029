package ankiimport

import (
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/redact"
)

// MediaUploader stores one media file and returns its durable public URL.
type MediaUploader interface {
	Upload(ctx context.Context, path string, content []byte, contentType string) (string, error)
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".bmp": {}, ".avif": {}, ".tif": {}, ".tiff": {}, ".ico": {},
}

func isImage(filename string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// mediaNames maps archive entry names to original filenames. Legacy exports
// store files under numeric names with a JSON "media" map; without a usable
// map every entry keeps its own name.
func (a *archive) mediaNames(log *slog.Logger) map[string]string {
	names := make(map[string]string)

	if _, ok := a.files[mediaMapEntry]; ok {
		raw, err := a.read(mediaMapEntry)
		if err == nil && isZstd(raw) {
			raw, err = a.decompress(raw)
		}
		var legacy map[string]string
		if err == nil {
			err = json.Unmarshal(raw, &legacy)
		}
		if err != nil {
			// Newer exports encode the map as protobuf.
			log.Debug("media map not usable, falling back to entry names", slog.String("error", err.Error()))
		} else {
			for entry, filename := range legacy {
				if _, ok := a.files[entry]; ok && filename != "" {
					names[entry] = filename
				}
			}
			return names
		}
	}

	for _, entry := range a.names {
		if entry == mediaMapEntry || isCollection(entry) {
			continue
		}
		names[entry] = entry
	}
	return names
}

// uploadMedia uploads every image in the archive and returns the mapping from
// original filename to public URL. A failed file is logged, counted and
// skipped.
func (a *archive) uploadMedia(
	ctx context.Context,
	ownerID uuid.UUID,
	uploader MediaUploader,
	summary *Summary,
	log *slog.Logger,
) map[string]string {
	urls := make(map[string]string)
	if uploader == nil {
		return urls
	}

	for entry, filename := range a.mediaNames(log) {
		if !isImage(filename) {
			continue
		}

		data, err := a.read(entry)
		if err == nil && isZstd(data) {
			data, err = a.decompress(data)
		}
		if err != nil {
			summary.MediaFailed++
			log.Warn("failed to read media entry",
				slog.String("filename", filename),
				slog.String("error", err.Error()))
			continue
		}

		contentType := mimetype.Detect(data).String()
		url, err := uploader.Upload(ctx, mediaPath(ownerID, filename), data, contentType)
		if err != nil {
			summary.MediaFailed++
			log.Warn("failed to upload media",
				slog.String("filename", filename),
				slog.String("error", redact.Error(&ResourceError{Op: "upload media", Err: err})))
			continue
		}

		urls[filename] = url
		summary.MediaUploaded++
	}

	return urls
}

func mediaPath(ownerID uuid.UUID, filename string) string {
	return path.Join("anki", ownerID.String(), path.Base(filename))
}
