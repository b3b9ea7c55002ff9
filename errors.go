package docview

import (
	"context"
	"errors"
)

// Sentinel errors classifying render failures. Providers wrap these with
// fmt.Errorf("...: %w", Err...) so the scheduler can route each failure
// per the taxonomy: transient failures are simply retried by the next
// visibility pass, decode failures purge the cache entry, stale and
// aborted results are discarded silently.
var (
	// ErrStale marks a result produced under an outdated render version.
	// Not a real error; discarded without logging.
	ErrStale = errors.New("docview: stale render version")

	// ErrAborted marks a fetch cancelled because its page scrolled far
	// out of view. Treated identically to ErrStale.
	ErrAborted = errors.New("docview: render aborted")

	// ErrDecode marks image data that could not be decoded. The cache
	// entry for the page is purged to force a clean re-fetch.
	ErrDecode = errors.New("docview: image decode failed")

	// ErrEngineClosed is returned by operations on a destroyed engine.
	ErrEngineClosed = errors.New("docview: engine closed")
)

// isDiscardable reports whether an error is stale/abort noise that should
// be dropped without logging.
func isDiscardable(err error) bool {
	return errors.Is(err, ErrStale) ||
		errors.Is(err, ErrAborted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// isDecodeFailure reports whether an error indicates cache corruption.
func isDecodeFailure(err error) bool {
	return errors.Is(err, ErrDecode)
}
