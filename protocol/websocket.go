package protocol

import "encoding/json"

// Requests accepted from the controlling client.
const (
	WSTypeSetRead       = "setRead"
	WSTypeSetWrite      = "setWrite"
	WSTypeSetReadOnly   = "setReadOnly"
	WSTypeSetPermission = "setPermission"
	WSTypeSetMessage    = "setMessage"
	WSTypeGetConfig     = "getConfig"
)

// Messages pushed to clients.
const (
	WSTypeConfig            = "config"
	WSTypeOperationComplete = "operationComplete"
	WSTypeReaderStatus      = "readerStatus"
	WSTypeReaderError       = "readerError"
	WSTypeNFCError          = "nfcError"
	WSTypeError             = "error"
)

// WebSocketMessage is the generic message envelope for WebSocket communication.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is for incoming requests from WebSocket clients.
// The payload shape depends on Type: a bool for setRead, setWrite and
// setReadOnly, a [read, write, readOnly] array for setPermission, and a
// string or null for setMessage.
type WebSocketRequest struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebSocketResponse is for responses to WebSocket requests.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorPayload is the payload of an error response.
type ErrorPayload struct {
	Code string `json:"code"`
}
