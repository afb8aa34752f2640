package adaptcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/1mb-dev/adaptcache/internal/prefetch"
	"github.com/1mb-dev/adaptcache/internal/store"
)

var (
	// ErrSerializationFailed is returned when a value cannot be encoded for storage
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrCacheOperationFailed wraps unexpected internal faults such as a
	// corrupted compressed payload
	ErrCacheOperationFailed = errors.New("cache operation failed")

	// ErrPrefetchFailed marks background fill failures. It is only ever
	// logged and counted, never returned from a foreground call.
	ErrPrefetchFailed = prefetch.ErrFailed

	// ErrDeduplicatedOperationFailed is returned to every caller attached to
	// a coalesced operation that failed
	ErrDeduplicatedOperationFailed = errors.New("deduplicated operation failed")

	// ErrCacheClosed is returned by operations on a destroyed cache
	ErrCacheClosed = errors.New("cache is closed")

	// ErrInvalidConfig is returned by New and Validate for unusable settings
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrEntryTooLarge is returned when a single value exceeds MaxSize
	ErrEntryTooLarge = store.ErrTooLarge
)

// OpError describes a failed foreground operation. Both Kind and Err are
// reachable through errors.Is and errors.As.
type OpError struct {
	Op       string
	Key      string
	Duration time.Duration
	Kind     error
	Err      error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("adaptcache: %s %q", e.Op, e.Key)
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + fmt.Sprintf(" (after %s)", e.Duration)
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func opError(op, key string, start time.Time, kind, err error) error {
	return &OpError{Op: op, Key: key, Duration: time.Since(start), Kind: kind, Err: err}
}
