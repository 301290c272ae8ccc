package replay

import "errors"

var (
	// ErrConfigurationUnavailable means capture cannot start with the given
	// recorder configuration. Recording stays disabled for the process.
	ErrConfigurationUnavailable = errors.New("recorder configuration unavailable")

	// ErrEncodingFailed is returned when the store produced no video for a window.
	ErrEncodingFailed = errors.New("encoding produced no video")

	// ErrBufferEmpty is returned when no frames are buffered for a window.
	ErrBufferEmpty = errors.New("no frames buffered for window")
)

// IOError wraps a failed cache directory operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}
