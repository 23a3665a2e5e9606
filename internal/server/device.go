package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/CK6170/tenmadc-go/modern"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

var errNotConnected = errors.New("not connected")

// DeviceSession guards the single supply the server talks to. All exchanges
// happen with mu held.
type DeviceSession struct {
	mu sync.Mutex

	id   string
	port string
	sess *modern.Session
}

// openDevice connects to port, identifying the model unless one is named.
func (s *Server) openDevice(req ConnectRequest) (*modern.Session, string, error) {
	port := strings.TrimSpace(req.Port)
	if port == "" {
		port = serialpkg.AutoDetectPort(s.listPortsOrEmpty(), serialpkg.DefaultBaud, modern.IsTenma)
		if port == "" {
			return nil, "", fmt.Errorf("could not auto-detect serial port")
		}
	}
	opts := []modern.Option{modern.WithObserver(modern.NewZapObserver(s.logger))}
	if req.Model != "" {
		sess, err := modern.Open(s.factory, port, req.Model, opts...)
		return sess, port, err
	}
	detectOpts := []modern.DetectOption{modern.WithSessionOptions(opts...)}
	if req.Fallback != "" {
		detectOpts = append(detectOpts, modern.WithFallback(req.Fallback))
	}
	sess, err := modern.Detect(s.factory, port, detectOpts...)
	return sess, port, err
}

func (s *Server) listPortsOrEmpty() []string {
	ports, err := s.listPorts()
	if err != nil {
		return nil
	}
	return ports
}

func (d *DeviceSession) disconnectLocked() string {
	id := d.id
	if d.sess != nil {
		_ = d.sess.Close()
	}
	d.sess = nil
	d.id = ""
	d.port = ""
	return id
}
