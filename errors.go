package gridtree

import (
	"errors"

	"github.com/hupe1980/gridtree/distrange"
	"github.com/hupe1980/gridtree/index"
)

var (
	// ErrNotFound is returned for lookups against unknown keys or operations
	// against unknown/closed query ids.
	ErrNotFound = errors.New("not found")

	// ErrInterrupted is returned when a rebuild is aborted by its context;
	// the original index is left untouched.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrRetryableTopology is returned when node resolution failed mid-query
	// due to a membership change; the caller restarts the entire distributed
	// query.
	ErrRetryableTopology = errors.New("retryable topology change")

	// ErrMalformedRequest is returned for an empty or inconsistent
	// range-bound batch.
	ErrMalformedRequest = errors.New("malformed request")
)

// translateError unifies internal error kinds into the package's public
// error contract. The original error stays reachable via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, index.ErrInterrupted):
		return errors.Join(ErrInterrupted, err)
	case errors.Is(err, distrange.ErrRetryableTopology):
		return errors.Join(ErrRetryableTopology, err)
	case errors.Is(err, distrange.ErrMalformedRequest):
		return errors.Join(ErrMalformedRequest, err)
	default:
		return err
	}
}
