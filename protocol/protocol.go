// Package protocol provides the message types spoken on the tag station's
// WebSocket and HTTP channels.
// This package is designed to be importable without pulling in server dependencies.
package protocol

import "time"

// Error codes carried in the payload of an error response.
const (
	ErrCodeParse          = "PARSE_ERROR"
	ErrCodeUnknownType    = "UNKNOWN_TYPE"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// ConfigPayload mirrors the operation configuration applied to the next tag.
// A nil Message means no message is set.
type ConfigPayload struct {
	Read     bool    `json:"read"`
	Write    bool    `json:"write"`
	ReadOnly bool    `json:"readOnly"`
	Message  *string `json:"message"`
}

// Reader status values.
const (
	ReaderAttached = "attached"
	ReaderDetached = "detached"
)

// ReaderStatusPayload is broadcast when a reader comes or goes.
type ReaderStatusPayload struct {
	Reader string `json:"reader"`
	Status string `json:"status"`
}

// ReaderErrorPayload is broadcast for an error reported by one reader.
type ReaderErrorPayload struct {
	Reader string `json:"reader"`
	Error  string `json:"error"`
}

// NFCErrorPayload is broadcast for an error of the reader driver itself.
type NFCErrorPayload struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Readers   int       `json:"readers"`
	Session   bool      `json:"session"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadersResponse is returned by GET /api/v1/readers.
type ReadersResponse struct {
	Readers []string `json:"readers"`
}

// ErrorResponse is the body of a failed HTTP request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}
