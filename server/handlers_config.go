package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dotside-studios/tagstation/nfc"
	"github.com/dotside-studios/tagstation/protocol"
	"go.uber.org/zap"
)

// ConfigHandler serves the configuration messages of the controlling client.
// Every accepted change is answered with the full configuration.
type ConfigHandler struct {
	config *nfc.OperationConfiguration
	logger *zap.Logger
}

// NewConfigHandler creates a handler mutating config.
func NewConfigHandler(config *nfc.OperationConfiguration, logger *zap.Logger) *ConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigHandler{config: config, logger: logger}
}

// Register implements ServerHandler.
func (h *ConfigHandler) Register(server HandlerServer) error {
	handlers := map[string]HandlerFunc{
		protocol.WSTypeSetRead:       h.flagHandler(h.config.SetRead),
		protocol.WSTypeSetWrite:      h.flagHandler(h.config.SetWrite),
		protocol.WSTypeSetReadOnly:   h.flagHandler(h.config.SetReadOnly),
		protocol.WSTypeSetPermission: h.handleSetPermission,
		protocol.WSTypeSetMessage:    h.handleSetMessage,
		protocol.WSTypeGetConfig:     h.handleGetConfig,
	}
	for messageType, fn := range handlers {
		if err := server.Handle(messageType, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *ConfigHandler) flagHandler(set func(bool) bool) HandlerFunc {
	return func(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
		var v bool
		if err := decodePayload(req.Payload, &v); err != nil {
			return h.reject(client, req, err)
		}
		set(v)
		return h.reply(client, req)
	}
}

func (h *ConfigHandler) handleSetPermission(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	var flags []bool
	if err := decodePayload(req.Payload, &flags); err != nil {
		return h.reject(client, req, err)
	}
	if len(flags) != 3 {
		return h.reject(client, req, fmt.Errorf("expected [read, write, readOnly], got %d values", len(flags)))
	}
	h.config.SetPermissions(flags[0], flags[1], flags[2])
	return h.reply(client, req)
}

func (h *ConfigHandler) handleSetMessage(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	var msg *string
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &msg); err != nil {
			return h.reject(client, req, fmt.Errorf("message must be a string or null"))
		}
	}
	h.config.SetMessage(msg)
	return h.reply(client, req)
}

func (h *ConfigHandler) handleGetConfig(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	return h.reply(client, req)
}

func (h *ConfigHandler) reply(client *Client, req protocol.WebSocketRequest) error {
	snap := h.config.Snapshot()
	h.logger.Debug("configuration updated",
		zap.String("request", req.Type),
		zap.Bool("read", snap.Read),
		zap.Bool("write", snap.Write),
		zap.Bool("readOnly", snap.ReadOnly))
	return client.SendResponse(req.ID, protocol.WSTypeConfig, ConfigPayload(snap))
}

func (h *ConfigHandler) reject(client *Client, req protocol.WebSocketRequest, err error) error {
	h.logger.Warn("invalid configuration request", zap.String("request", req.Type), zap.Error(err))
	if sendErr := client.SendError(req.ID, protocol.ErrCodeInvalidPayload, err.Error()); sendErr != nil {
		return sendErr
	}
	return err
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// ConfigPayload converts a configuration snapshot to its wire form.
func ConfigPayload(s nfc.Snapshot) protocol.ConfigPayload {
	return protocol.ConfigPayload{Read: s.Read, Write: s.Write, ReadOnly: s.ReadOnly, Message: s.Message}
}

// SnapshotFromPayload converts the wire form back to a snapshot.
func SnapshotFromPayload(p protocol.ConfigPayload) nfc.Snapshot {
	return nfc.Snapshot{Read: p.Read, Write: p.Write, ReadOnly: p.ReadOnly, Message: p.Message}
}
