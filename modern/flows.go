package modern

import (
	"context"
	"time"

	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// Reset switches the output off and back on.
func Reset(s *Session) error {
	if err := s.SetOutput(false); err != nil {
		return err
	}
	return s.SetOutput(true)
}

// SetVoltageVerified sets the voltage and reads the setpoint back.
func SetVoltageVerified(s *Session, ch, mV int) error {
	if err := s.SetVoltage(ch, mV); err != nil {
		return err
	}
	got, err := s.ReadVoltage(ch)
	if err != nil {
		return err
	}
	if got != mV {
		return &VerifyError{Op: protocol.OpSetVoltage, Want: mV, Got: got}
	}
	return nil
}

// SetCurrentVerified sets the current limit and reads the setpoint back.
func SetCurrentVerified(s *Session, ch, mA int) error {
	if err := s.SetCurrent(ch, mA); err != nil {
		return err
	}
	got, err := s.ReadCurrent(ch)
	if err != nil {
		return err
	}
	if got != mA {
		return &VerifyError{Op: protocol.OpSetCurrent, Want: mA, Got: got}
	}
	return nil
}

// RetryDelay is the pause between Retry attempts.
var RetryDelay = 100 * time.Millisecond

// Retry runs fn up to attempts times, retrying only timeouts. The first
// command after opening a port is sometimes lost while the adapter settles.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !serialpkg.IsTimeout(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryDelay):
		}
	}
	return err
}
