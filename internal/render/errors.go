package render

import "errors"

// ErrTimeout marks a render item that exceeded its deadline. The item is
// discarded whole: no partial video or audio reaches the output queue, and
// the pipeline never retries it on its own.
var ErrTimeout = errors.New("render: item deadline exceeded")

// ErrEmptyTimeline marks a job whose segments expand to zero chunks.
var ErrEmptyTimeline = errors.New("render: timeline expands to zero chunks")
