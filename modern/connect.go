package modern

import (
	"fmt"
	"time"

	"github.com/CK6170/tenmadc-go/models"
	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// OpDetectFallback is the observer event emitted when Detect falls back to a
// configured profile.
const OpDetectFallback = "detect-fallback"

// TransportFactory opens the transport for a device path.
type TransportFactory func(path string) (*serialpkg.Transport, error)

// SerialFactory opens real serial ports.
func SerialFactory(baud int, timeout time.Duration) TransportFactory {
	return func(path string) (*serialpkg.Transport, error) {
		return serialpkg.Open(path, baud, timeout)
	}
}

type detectConfig struct {
	fallback    string
	sessionOpts []Option
}

// DetectOption configures Detect.
type DetectOption func(*detectConfig)

// WithFallback binds unrecognised devices to the named profile instead of
// failing.
func WithFallback(name string) DetectOption {
	return func(c *detectConfig) { c.fallback = name }
}

// WithSessionOptions passes options to the probe and the resulting Session.
func WithSessionOptions(opts ...Option) DetectOption {
	return func(c *detectConfig) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// probeEOLs lists each distinct command terminator of the registry, in
// registry order.
func probeEOLs() []string {
	var eols []string
	seen := map[string]bool{}
	for _, p := range models.All() {
		if !seen[p.CommandEOL] {
			seen[p.CommandEOL] = true
			eols = append(eols, p.CommandEOL)
		}
	}
	return eols
}

// identify sends *IDN? once per terminator dialect and returns the first
// reply. Replies are read silence-delimited since the dialect is not known yet.
func identify(t *serialpkg.Transport, opts []Option) (string, error) {
	var lastErr error
	for _, eol := range probeEOLs() {
		probe := &models.Profile{Name: "unidentified", CommandEOL: eol}
		id, err := NewSession(t, probe, opts...).Identification()
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !serialpkg.IsTimeout(err) && !protocol.IsMalformed(err) {
			break
		}
	}
	return "", lastErr
}

// Detect opens path, identifies the device and binds a Session to the
// matching profile. The transport is closed on every failure.
func Detect(factory TransportFactory, path string, opts ...DetectOption) (*Session, error) {
	var cfg detectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	t, err := factory(path)
	if err != nil {
		return nil, err
	}
	id, err := identify(t, cfg.sessionOpts)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	p, ok := models.Lookup(id)
	if !ok {
		if cfg.fallback == "" {
			_ = t.Close()
			return nil, &UnknownModelError{ID: id}
		}
		p, ok = models.ByName(cfg.fallback)
		if !ok {
			_ = t.Close()
			return nil, fmt.Errorf("fallback %q: %w", cfg.fallback, &UnknownModelError{ID: id})
		}
		s := NewSession(t, p, cfg.sessionOpts...)
		s.observer.Exchange(ExchangeEvent{Op: OpDetectFallback, Received: []byte(id)})
		return s, nil
	}
	return NewSession(t, p, cfg.sessionOpts...), nil
}

// Open binds a Session to an explicitly named model without identification.
func Open(factory TransportFactory, path, model string, opts ...Option) (*Session, error) {
	p, ok := models.ByName(model)
	if !ok {
		return nil, &UnknownModelError{ID: model}
	}
	t, err := factory(path)
	if err != nil {
		return nil, err
	}
	return NewSession(t, p, opts...), nil
}

// IsTenma is a serial.ProbeFunc that accepts ports answering with a known
// identification.
func IsTenma(t *serialpkg.Transport) bool {
	id, err := identify(t, []Option{WithTimeout(serialpkg.ProbeTimeout)})
	if err != nil {
		return false
	}
	_, ok := models.Lookup(id)
	return ok
}

