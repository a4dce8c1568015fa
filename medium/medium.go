// Package medium defines shared helpers for the sink extensions. A medium
// owns its connection to one sink and delivers formatted payloads; the
// writer pool bounds how many Write calls run at once, so mediums only
// need to be safe for that concurrency, not to limit it themselves.
package medium

import (
	"fmt"

	"github.com/admirito/avalon/errors"
)

// WriteFailed classifies a sink failure for the scheduler's error policy:
// transient failures are retried by the medium itself before surfacing, so
// anything reaching the pool counts against the consecutive-failure limit.
func WriteFailed(err error, component string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%w: %v", errors.ErrWriteFailed, err)
	if errors.IsTransient(err) {
		return errors.WrapTransient(wrapped, component, "Write", "deliver batch")
	}
	return errors.WrapFatal(wrapped, component, "Write", "deliver batch")
}
