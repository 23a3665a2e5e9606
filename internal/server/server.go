package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

type Server struct {
	mux *http.ServeMux

	logger    *zap.Logger
	factory   modern.TransportFactory
	listPorts func() ([]string, error)

	store *SessionStore
	dev   *DeviceSession

	wsStatus *WSHub
}

type Options struct {
	Logger *zap.Logger
	// Factory opens device transports; defaults to real serial ports at 9600 baud.
	Factory   modern.TransportFactory
	ListPorts func() ([]string, error)
	// WebRoot, when set, is served at /.
	WebRoot string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Factory == nil {
		opts.Factory = modern.SerialFactory(serialpkg.DefaultBaud, serialpkg.DefaultTimeout)
	}
	if opts.ListPorts == nil {
		opts.ListPorts = serialpkg.ListPorts
	}
	s := &Server{
		mux:       http.NewServeMux(),
		logger:    opts.Logger,
		factory:   opts.Factory,
		listPorts: opts.ListPorts,
		store:     NewSessionStore(),
		dev:       &DeviceSession{},
		wsStatus:  NewWSHub(opts.Logger),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/ports", s.handlePorts)
	s.mux.HandleFunc("/api/connect", s.handleConnect)
	s.mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/api/output", s.handleOutput)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/session", s.handleSession)

	// WS
	s.mux.HandleFunc("/ws/status", s.handleWSStatus)

	if opts.WebRoot != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(opts.WebRoot)))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Close drops the device connection.
func (s *Server) Close() {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if id := s.dev.disconnectLocked(); id != "" {
		s.store.MarkClosed(id)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// writeError maps driver error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, errNotConnected):
		status, kind = http.StatusConflict, "not_connected"
	case modern.IsOutOfRange(err):
		status, kind = http.StatusBadRequest, "out_of_range"
	case modern.IsUnsupported(err):
		status, kind = http.StatusBadRequest, "unsupported"
	case modern.IsUnknownModel(err):
		status, kind = http.StatusNotFound, "unknown_model"
	case serialpkg.IsConnection(err):
		status, kind = http.StatusBadGateway, "connection"
	case serialpkg.IsTimeout(err):
		status, kind = http.StatusGatewayTimeout, "timeout"
	case protocol.IsMalformed(err):
		status, kind = http.StatusBadGateway, "malformed_reply"
	case serialpkg.IsIO(err):
		status, kind = http.StatusBadGateway, "io"
	}
	s.writeJSON(w, status, APIError{Error: err.Error(), Kind: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ports, err := s.listPorts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	s.writeJSON(w, 200, PortsResponse{Ports: ports})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ConnectRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	if id := s.dev.disconnectLocked(); id != "" {
		s.store.MarkClosed(id)
	}

	sess, port, err := s.openDevice(req)
	if err != nil {
		s.logger.Warn("connect failed", zap.String("port", req.Port), zap.Error(err))
		s.writeError(w, err)
		return
	}
	// Probe
	ident, err := sess.Identification()
	if err != nil {
		_ = sess.Close()
		s.writeError(w, err)
		return
	}

	rec := s.store.Put(port, sess.Profile().Name, ident)
	s.dev.id = rec.ID
	s.dev.port = port
	s.dev.sess = sess
	s.logger.Info("connected",
		zap.String("session", rec.ID),
		zap.String("port", port),
		zap.String("model", rec.Model),
		zap.String("identification", ident))

	s.writeJSON(w, 200, ConnectResponse{
		Connected:      true,
		SessionID:      rec.ID,
		Port:           port,
		Model:          rec.Model,
		Identification: ident,
	})
	s.wsStatus.Broadcast(WSMessage{Type: "connected", Data: s.snapshotLocked(nil)})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if id := s.dev.disconnectLocked(); id != "" {
		s.store.MarkClosed(id)
		s.logger.Info("disconnected", zap.String("session", id))
	}
	s.writeJSON(w, 200, map[string]bool{"ok": true})
	s.wsStatus.Broadcast(WSMessage{Type: "disconnected", Data: StatusResponse{}})
}

// withDevice runs action, if any, then reads the status and broadcasts it.
func (s *Server) withDevice(w http.ResponseWriter, action func(sess *modern.Session) error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.dev.sess == nil {
		s.writeError(w, errNotConnected)
		return
	}
	if action != nil {
		if err := action(s.dev.sess); err != nil {
			s.writeError(w, err)
			return
		}
	}
	st, err := s.dev.sess.ReadStatus()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := s.snapshotLocked(&st)
	s.writeJSON(w, 200, resp)
	s.wsStatus.Broadcast(WSMessage{Type: "status", Data: resp})
}

func (s *Server) snapshotLocked(st *protocol.Status) StatusResponse {
	if s.dev.sess == nil {
		return StatusResponse{}
	}
	return StatusResponse{
		Connected: true,
		SessionID: s.dev.id,
		Port:      s.dev.port,
		Model:     s.dev.sess.Profile().Name,
		Status:    st,
	}
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req OutputRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	s.withDevice(w, func(sess *modern.Session) error {
		return sess.SetOutput(req.On)
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.withDevice(w, modern.Reset)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.withDevice(w, nil)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, 400, APIError{Error: "missing id"})
		return
	}
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "not found"})
		return
	}
	s.writeJSON(w, 200, rec)
}
