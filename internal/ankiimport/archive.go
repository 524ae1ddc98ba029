package ankiimport

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Collection database names, newest format first.
const (
	collectionAnki21b = "collection.anki21b"
	collectionAnki21  = "collection.anki21"
	collectionAnki2   = "collection.anki2"

	mediaMapEntry = "media"
)

// DefaultMaxCollectionBytes caps the decoded size of any archive entry.
const DefaultMaxCollectionBytes int64 = 1 << 30

// ErrEntryTooLarge is returned when an archive entry decodes to more than the
// configured limit.
var ErrEntryTooLarge = errors.New("archive entry exceeds the size limit")

var collectionNames = []string{collectionAnki21b, collectionAnki21, collectionAnki2}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// archive is an opened .apkg or .colpkg file.
type archive struct {
	files    map[string]*zip.File
	names    []string
	maxBytes int64
}

// openArchive reads the zip directory. Entries are decoded lazily and each
// is limited to maxBytes once inflated or zstd-decoded.
func openArchive(data []byte, maxBytes int64) (*archive, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCollectionBytes
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &InvalidArchiveError{Err: err}
	}

	a := &archive{files: make(map[string]*zip.File, len(zr.File)), maxBytes: maxBytes}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[f.Name] = f
		a.names = append(a.names, f.Name)
	}
	sort.Strings(a.names)
	return a, nil
}

// collection returns the name and decoded bytes of the newest collection
// database in the archive.
func (a *archive) collection() (string, []byte, error) {
	for _, name := range collectionNames {
		if _, ok := a.files[name]; !ok {
			continue
		}
		data, err := a.read(name)
		if err != nil {
			return "", nil, &ResourceError{Op: "read " + name, Err: err}
		}
		if name == collectionAnki21b {
			if data, err = a.decompress(data); err != nil {
				if errors.Is(err, ErrEntryTooLarge) {
					return "", nil, &ResourceError{Op: "decode " + name, Err: err}
				}
				return "", nil, &CorruptDataError{Field: name, Reason: "zstd decode failed", Err: err}
			}
		}
		return name, data, nil
	}
	return "", nil, &InvalidArchiveError{Entries: a.names}
}

// read returns the inflated bytes of an entry, refusing entries larger than
// the archive's limit.
func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("%w: %s inflates past %d bytes", ErrEntryTooLarge, name, a.maxBytes)
	}
	return data, nil
}

// isCollection reports whether name is one of the collection database entries.
func isCollection(name string) bool {
	return slices.Contains(collectionNames, name)
}

// decompress decodes a zstd frame. Newer exports compress the collection and
// every media file.
func (a *archive) decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(a.maxBytes)))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || int64(len(out)) > a.maxBytes {
		return nil, fmt.Errorf("%w: zstd frame decodes past %d bytes", ErrEntryTooLarge, a.maxBytes)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
