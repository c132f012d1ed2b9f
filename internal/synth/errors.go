package synth

import (
	"errors"
	"fmt"
)

var errNoFetcher = errors.New("no fetcher configured")

// ResourceError reports a failed fetch or decode of a Sample audio URL.
// The synthesizer recovers from it locally by substituting silence for the
// affected segment; it is surfaced only through logs and, for callers that
// fetch eagerly, the Fetcher's own return value.
type ResourceError struct {
	URL string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("synth: audio resource %s: %v", e.URL, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
