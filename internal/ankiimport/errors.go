package ankiimport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks against the typed import errors.
var (
	ErrInvalidArchive    = errors.New("invalid archive")
	ErrCorruptData       = errors.New("corrupt collection data")
	ErrThresholdExceeded = errors.New("too many cards failed to import")
	ErrResource          = errors.New("import resource failure")
)

// Failure categories reported by Category.
const (
	CategoryUnsupportedFormat = "unsupported_format"
	CategoryCorruptedExport   = "corrupted_export"
	CategoryTooManyFailures   = "too_many_failures"
	CategoryResource          = "resource"
	CategoryUnknown           = "unknown"
)

// InvalidArchiveError means the archive holds no recognizable collection database.
type InvalidArchiveError struct {
	// Entries lists every entry name found in the archive.
	Entries []string
	Err     error
}

func (e *InvalidArchiveError) Error() string {
	msg := "archive contains no collection database"
	if e.Err != nil {
		msg = fmt.Sprintf("archive could not be read: %v", e.Err)
	}
	if len(e.Entries) == 0 {
		return msg + " (no entries)"
	}
	return fmt.Sprintf("%s (entries: %s)", msg, strings.Join(e.Entries, ", "))
}

func (e *InvalidArchiveError) Is(target error) bool { return target == ErrInvalidArchive }
func (e *InvalidArchiveError) Unwrap() error        { return e.Err }

// CorruptDataError means collection metadata every card depends on is unusable.
type CorruptDataError struct {
	Field  string
	Reason string
	Err    error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt collection %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt collection %s: %s", e.Field, e.Reason)
}

func (e *CorruptDataError) Is(target error) bool { return target == ErrCorruptData }
func (e *CorruptDataError) Unwrap() error        { return e.Err }

// ThresholdExceededError aborts an import whose per-card failure rate is too high.
type ThresholdExceededError struct {
	Failed    int
	Processed int
	Threshold float64
}

// Rate returns the observed failure rate.
func (e *ThresholdExceededError) Rate() float64 {
	if e.Processed == 0 {
		return 0
	}
	return float64(e.Failed) / float64(e.Processed)
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("%d of %d cards failed to import (%.1f%%, limit %.0f%%)",
		e.Failed, e.Processed, e.Rate()*100, e.Threshold*100)
}

func (e *ThresholdExceededError) Is(target error) bool { return target == ErrThresholdExceeded }

// ResourceError wraps I/O failures unrelated to the archive's content.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Is(target error) bool { return target == ErrResource }
func (e *ResourceError) Unwrap() error        { return e.Err }

// Category maps a fatal import error to a stable category name so callers can
// show distinct guidance for each kind of failure.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArchive):
		return CategoryUnsupportedFormat
	case errors.Is(err, ErrCorruptData):
		return CategoryCorruptedExport
	case errors.Is(err, ErrThresholdExceeded):
		return CategoryTooManyFailures
	case errors.Is(err, ErrResource):
		return CategoryResource
	default:
		return CategoryUnknown
	}
}
