package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionRecord describes one connection made through the server.
type SessionRecord struct {
	ID             string     `json:"id"`
	Port           string     `json:"port"`
	Model          string     `json:"model"`
	Identification string     `json:"identification"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
}

type SessionStore struct {
	mu sync.RWMutex
	m  map[string]*SessionRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{m: make(map[string]*SessionRecord)}
}

func (s *SessionStore) Put(port, model, ident string) *SessionRecord {
	rec := &SessionRecord{
		ID:             uuid.NewString(),
		Port:           port,
		Model:          model,
		Identification: ident,
		ConnectedAt:    time.Now(),
	}
	s.mu.Lock()
	s.m[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

func (s *SessionStore) Get(id string) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	if !ok {
		return SessionRecord{}, false
	}
	return *r, true
}

// MarkClosed stamps the record as closed. Unknown ids are ignored.
func (s *SessionStore) MarkClosed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.m[id]; ok && r.ClosedAt == nil {
		now := time.Now()
		r.ClosedAt = &now
	}
}
