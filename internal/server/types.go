package server

import (
	"time"

	"github.com/CK6170/tenmadc-go/protocol"
)

type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

type PortsResponse struct {
	Ports []string `json:"ports"`
}

type ConnectRequest struct {
	Port     string `json:"port"`
	Model    string `json:"model,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

type ConnectResponse struct {
	Connected      bool   `json:"connected"`
	SessionID      string `json:"sessionId"`
	Port           string `json:"port"`
	Model          string `json:"model"`
	Identification string `json:"identification"`
}

type OutputRequest struct {
	On bool `json:"on"`
}

type StatusResponse struct {
	Connected bool             `json:"connected"`
	SessionID string           `json:"sessionId,omitempty"`
	Port      string           `json:"port,omitempty"`
	Model     string           `json:"model,omitempty"`
	Status    *protocol.Status `json:"status,omitempty"`
}
