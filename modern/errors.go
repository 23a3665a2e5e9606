package modern

import (
	"errors"
	"fmt"

	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// ErrUnreliableReadback marks a failed current read on firmware known to
// corrupt those replies.
var ErrUnreliableReadback = errors.New("current readback is unreliable on this model")

// OutOfRangeError is a value or slot outside the model's limits. It is
// raised before anything is written.
type OutOfRangeError struct {
	Op    string
	Field string
	Value int
	Min   int
	Max   int
	// Allowed lists the only accepted values on fixed-value channels.
	Allowed []int
	Reason  string
}

func (e *OutOfRangeError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s: %s %d %s", e.Op, e.Field, e.Value, e.Reason)
	case len(e.Allowed) > 0:
		return fmt.Sprintf("%s: %s %d not one of %v", e.Op, e.Field, e.Value, e.Allowed)
	default:
		return fmt.Sprintf("%s: %s %d outside %d..%d", e.Op, e.Field, e.Value, e.Min, e.Max)
	}
}

// UnsupportedOperationError is an operation the model does not implement.
type UnsupportedOperationError struct {
	Op    string
	Model string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: not supported by %s", e.Op, e.Model)
}

// UnknownModelError is an identification string no profile matches.
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.ID)
}

// OpError annotates a transport or codec failure with the session operation.
type OpError struct {
	Op    string
	Model string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Model, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// VerifyError is a read-back that differs from the value just written.
type VerifyError struct {
	Op   string
	Want int
	Got  int
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: wrote %d, read back %d", e.Op, e.Want, e.Got)
}

// unreliableError carries both the decode failure and ErrUnreliableReadback.
type unreliableError struct {
	err error
}

func (e *unreliableError) Error() string {
	return fmt.Sprintf("%v (%v)", e.err, ErrUnreliableReadback)
}

func (e *unreliableError) Unwrap() []error { return []error{e.err, ErrUnreliableReadback} }

func IsOutOfRange(err error) bool {
	var e *OutOfRangeError
	return errors.As(err, &e)
}

func IsUnsupported(err error) bool {
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}

func IsUnknownModel(err error) bool {
	var e *UnknownModelError
	return errors.As(err, &e)
}

func IsTimeout(err error) bool { return serialpkg.IsTimeout(err) }

func IsMalformed(err error) bool { return protocol.IsMalformed(err) }
