package serial

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed Transport.
var ErrClosed = errors.New("transport closed")

// ConnectionError means the device path could not be opened.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError is a write or read failure such as a broken pipe or a detached device.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TimeoutError means no complete reply arrived within the read window.
// Got holds whatever partial data was seen, for diagnostics only.
type TimeoutError struct {
	Op     string
	Window time.Duration
	Got    []byte
}

func (e *TimeoutError) Error() string {
	if len(e.Got) > 0 {
		return fmt.Sprintf("%s: no complete reply within %s (partial %q)", e.Op, e.Window, e.Got)
	}
	return fmt.Sprintf("%s: no reply within %s", e.Op, e.Window)
}

// Timeout reports true so callers can use the net.Error style check.
func (e *TimeoutError) Timeout() bool { return true }

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsConnection reports whether err is or wraps a *ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsIO reports whether err is or wraps an *IOError.
func IsIO(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
