package protocol

import (
	"errors"
	"fmt"
)

// ErrUnencodable means a value cannot be rendered in the requested field
// format: negative, off the resolution grid, or too wide.
var ErrUnencodable = errors.New("value not representable")

// MalformedReplyError is a reply that does not match the expected format.
type MalformedReplyError struct {
	Op     string
	Reply  []byte
	Reason string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%s: malformed reply %q: %s", e.Op, e.Reply, e.Reason)
}

// IsMalformed reports whether err is or wraps a *MalformedReplyError.
func IsMalformed(err error) bool {
	var me *MalformedReplyError
	return errors.As(err, &me)
}

func malformed(op string, reply []byte, format string, a ...any) error {
	return &MalformedReplyError{Op: op, Reply: append([]byte(nil), reply...), Reason: fmt.Sprintf(format, a...)}
}
