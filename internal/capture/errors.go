package capture

import "fmt"

// DecodeError reports a fatal decoder failure: a malformed config or a
// bitstream the decoder rejected. It aborts the render.
type DecodeError struct {
	Chunk int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("capture: decode chunk %d: %v", e.Chunk, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a fatal capture-sink failure. It aborts the render.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("capture: encode: %v", e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
