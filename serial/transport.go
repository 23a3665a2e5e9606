package serial

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	goserial "github.com/tarm/serial"
)

const (
	DefaultBaud    = 9600
	DefaultTimeout = time.Second

	// PollInterval is the per-read timeout given to the port. A silence of
	// one interval after data ends a reply that has no terminator. On POSIX
	// tarm/serial turns ReadTimeout into VTIME, counted in tenths of a second,
	// so the interval must be a whole multiple of 100 ms to mean what it says.
	PollInterval = 100 * time.Millisecond
)

// Port is the raw byte stream under a Transport. *tarm/serial.Port satisfies it;
// tests plug in simulated devices.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Transport owns one serial port and runs one request/reply exchange at a time.
// It is not safe for concurrent exchanges.
type Transport struct {
	port    Port
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Open opens path at baud (8N1). timeout is the default reply window.
func Open(path string, baud int, timeout time.Duration) (*Transport, error) {
	if path == "" {
		return nil, &ConnectionError{Path: path, Err: errors.New("empty device path")}
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	cfg := &goserial.Config{
		Name:        path,
		Baud:        baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: PollInterval,
	}
	port, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	return NewTransport(port, timeout), nil
}

// NewTransport wraps an already open port.
func NewTransport(p Port, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{port: p, timeout: timeout}
}

// Timeout is the default reply window.
func (t *Transport) Timeout() time.Duration { return t.timeout }

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// WriteRaw discards stale input, then writes b in full.
func (t *Transport) WriteRaw(b []byte) error {
	if t.isClosed() {
		return &IOError{Op: "write", Err: ErrClosed}
	}
	// Leftovers from a previous garbled reply would corrupt this exchange.
	if err := t.port.Flush(); err != nil {
		return &IOError{Op: "flush", Err: err}
	}
	n, err := t.port.Write(b)
	if err != nil {
		return &IOError{Op: "write", Err: err}
	}
	if n != len(b) {
		return &IOError{Op: "write", Err: io.ErrShortWrite}
	}
	return nil
}

// ReadUntil reads until term has been received and returns the data up to and
// including it. An empty term reads until the line falls silent after at least
// one byte. No partial data is ever returned: a reply that is incomplete at the
// deadline is a *TimeoutError.
func (t *Transport) ReadUntil(term []byte, timeout time.Duration) ([]byte, error) {
	if t.isClosed() {
		return nil, &IOError{Op: "read", Err: ErrClosed}
	}
	if timeout <= 0 {
		timeout = t.timeout
	}
	deadline := time.Now().Add(timeout)
	var buf []byte
	chunk := make([]byte, 64)
	for {
		n, err := t.port.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(term) > 0 {
				if i := bytes.Index(buf, term); i >= 0 {
					return buf[:i+len(term)], nil
				}
			}
		}
		// tarm/serial reports a poll timeout as (0, io.EOF) on POSIX and (0, nil) on Windows.
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &IOError{Op: "read", Err: err}
		}
		if n == 0 && len(term) == 0 && len(buf) > 0 {
			return buf, nil
		}
		if !time.Now().Before(deadline) {
			return nil, &TimeoutError{Op: "read", Window: timeout, Got: buf}
		}
	}
}

// ReadN reads exactly n bytes.
func (t *Transport) ReadN(n int, timeout time.Duration) ([]byte, error) {
	if t.isClosed() {
		return nil, &IOError{Op: "read", Err: ErrClosed}
	}
	if timeout <= 0 {
		timeout = t.timeout
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, n)
	chunk := make([]byte, n)
	for len(buf) < n {
		m, err := t.port.Read(chunk[:n-len(buf)])
		if m > 0 {
			buf = append(buf, chunk[:m]...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &IOError{Op: "read", Err: err}
		}
		if !time.Now().Before(deadline) {
			return nil, &TimeoutError{Op: "read", Window: timeout, Got: buf}
		}
	}
	return buf, nil
}

// Close releases the port. Calling it more than once is harmless.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
