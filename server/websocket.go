package server

import (
	"sync"
	"time"

	"github.com/dotside-studios/tagstation/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait bounds every write so a stalled peer cannot block a broadcast.
const writeWait = 5 * time.Second

// Client is one WebSocket connection. Writes are serialized because a
// gorilla connection supports only one concurrent writer.
type Client struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex

	writeWait time.Duration
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), conn: conn, writeWait: writeWait}
}

// WriteJSON sends v as a single text frame.
func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendError sends a structured error response.
func (c *Client) SendError(requestID, code, message string) error {
	return c.WriteJSON(protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: protocol.ErrorPayload{Code: code},
	})
}

// SendResponse sends a successful response of the given type.
func (c *Client) SendResponse(requestID, responseType string, payload any) error {
	return c.WriteJSON(protocol.WebSocketResponse{
		ID:      requestID,
		Type:    responseType,
		Success: true,
		Payload: payload,
	})
}

// ClientManager manages WebSocket client connections and broadcasting.
type ClientManager struct {
	clients map[*Client]bool
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewClientManager creates a new ClientManager instance.
func NewClientManager(logger *zap.Logger) *ClientManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientManager{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a new client connection.
func (cm *ClientManager) Register(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[c] = true
}

// Unregister removes a client connection.
func (cm *ClientManager) Unregister(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, c)
}

// Count returns the number of connected clients.
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// CloseAll closes all client connections.
func (cm *ClientManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for c := range cm.clients {
		c.Close()
		delete(cm.clients, c)
	}
}

// Broadcast sends a message to all connected clients, dropping any client
// whose write fails.
func (cm *ClientManager) Broadcast(messageType string, payload any) {
	message := protocol.WebSocketMessage{Type: messageType, Payload: payload}

	cm.mu.RLock()
	clients := make([]*Client, 0, len(cm.clients))
	for c := range cm.clients {
		clients = append(clients, c)
	}
	cm.mu.RUnlock()

	for _, c := range clients {
		if err := c.WriteJSON(message); err != nil {
			cm.logger.Warn("websocket write failed", zap.String("client", c.ID), zap.Error(err))
			c.Close()
			cm.Unregister(c)
		}
	}
}
