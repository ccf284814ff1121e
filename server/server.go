// Package server provides the HTTP and WebSocket channels through which a
// client configures the tag station and receives operation results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dotside-studios/tagstation/buildinfo"
	"github.com/dotside-studios/tagstation/nfc"
	"github.com/dotside-studios/tagstation/protocol"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration
type Config struct {
	Port      int
	APISecret string // Optional API secret for WebSocket and REST access

	// Advertise registers the station over mDNS.
	Advertise bool

	// ResetOnDisconnect disables every phase and clears the message when
	// the controlling WebSocket session ends.
	ResetOnDisconnect bool

	// TLSCertFile and TLSKeyFile, when both set, switch the server to
	// HTTPS and wss://.
	TLSCertFile string
	TLSKeyFile  string

	Operation *nfc.OperationConfiguration
	Cache     *nfc.ResultCache
	Logger    *zap.Logger
}

// Server manages the HTTP and WebSocket server. It also implements
// nfc.ResultSink and forwards everything it receives to connected clients.
type Server struct {
	config   Config
	logger   *zap.Logger
	clients  *ClientManager
	sessions *SessionManager
	registry *HandlerRegistry
	upgrader websocket.Upgrader

	readers   map[string]bool
	readersMu sync.RWMutex

	httpServer *http.Server
	mdnsServer *zeroconf.Server
}

var _ nfc.ResultSink = (*Server)(nil)

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Operation == nil {
		return nil, nfc.NewConfigurationError("server.New", "operation configuration is required")
	}
	if config.Cache == nil {
		config.Cache = nfc.NewResultCache()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		clients:  NewClientManager(logger),
		registry: NewHandlerRegistry(),
		readers:  make(map[string]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}

	var onRelease func()
	if config.ResetOnDisconnect {
		onRelease = func() {
			logger.Info("session ended, resetting operation configuration")
			config.Operation.Reset()
		}
	}
	s.sessions = NewSessionManager(config.APISecret, onRelease, logger)

	if err := NewConfigHandler(config.Operation, logger).Register(s); err != nil {
		return nil, fmt.Errorf("register config handler: %w", err)
	}
	logger.Debug("websocket handlers registered", zap.Strings("types", s.registry.MessageTypes()))

	// every change, whatever its source, is pushed to the connected client
	config.Operation.OnChange(func(snap nfc.Snapshot) {
		s.clients.Broadcast(protocol.WSTypeConfig, ConfigPayload(snap))
	})
	return s, nil
}

// Handle implements HandlerServer interface.
func (s *Server) Handle(messageType string, handler HandlerFunc) error {
	return s.registry.Handle(messageType, handler)
}

// Readers returns the names of the attached readers, sorted.
func (s *Server) Readers() []string {
	s.readersMu.RLock()
	defer s.readersMu.RUnlock()
	names := make([]string, 0, len(s.readers))
	for name := range s.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReaderAttached implements nfc.ResultSink.
func (s *Server) ReaderAttached(name string) {
	s.readersMu.Lock()
	s.readers[name] = true
	s.readersMu.Unlock()

	s.logger.Info("reader connected", zap.String("reader", name))
	s.clients.Broadcast(protocol.WSTypeReaderStatus, protocol.ReaderStatusPayload{Reader: name, Status: protocol.ReaderAttached})
}

// ReaderDetached implements nfc.ResultSink.
func (s *Server) ReaderDetached(name string) {
	s.readersMu.Lock()
	delete(s.readers, name)
	s.readersMu.Unlock()

	s.logger.Info("reader disconnected", zap.String("reader", name))
	s.clients.Broadcast(protocol.WSTypeReaderStatus, protocol.ReaderStatusPayload{Reader: name, Status: protocol.ReaderDetached})
}

// ReaderError implements nfc.ResultSink.
func (s *Server) ReaderError(name string, err error) {
	s.clients.Broadcast(protocol.WSTypeReaderError, protocol.ReaderErrorPayload{Reader: name, Error: err.Error()})
}

// DriverError implements nfc.ResultSink.
func (s *Server) DriverError(err error) {
	s.clients.Broadcast(protocol.WSTypeNFCError, protocol.NFCErrorPayload{Error: err.Error()})
}

// OperationComplete implements nfc.ResultSink.
func (s *Server) OperationComplete(result nfc.OperationResult) {
	s.config.Cache.Store(result)
	s.logger.Info("operation complete",
		zap.String("id", result.ID),
		zap.String("reader", result.Reader),
		zap.String("uid", result.UID),
		zap.Bool("failed", result.Failed()))
	s.clients.Broadcast(protocol.WSTypeOperationComplete, result)
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc(RouteHealth, s.handleHealthCheck).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc(RouteWebSocket, s.handleWebSocket)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireSecret)
	api.HandleFunc(RouteReaders, s.handleReaders).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc(RouteConfig, s.handleGetConfig).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc(RouteConfig, s.handlePutConfig).Methods(http.MethodPut)
	api.HandleFunc(RouteLastResult, s.handleLastResult).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc(RouteResultByUID, s.handleResultByUID).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(buildinfo.DisplayName + " Running"))
	})
	return r
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.config.Advertise {
		if err := s.startMDNS(); err != nil {
			s.logger.Warn("mDNS registration failed, auto-discovery unavailable", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if s.tlsEnabled() {
			s.logger.Info("starting server", zap.String("addr", ln.Addr().String()), zap.Bool("tls", true))
			errCh <- s.httpServer.ServeTLS(ln, s.config.TLSCertFile, s.config.TLSKeyFile)
			return
		}
		s.logger.Info("starting server", zap.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stopMDNS()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	s.stopMDNS()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	// hijacked websocket connections are not tracked by Shutdown
	s.clients.CloseAll()
	<-errCh
	return err
}

func (s *Server) tlsEnabled() bool {
	return s.config.TLSCertFile != "" && s.config.TLSKeyFile != ""
}

// startMDNS registers the station as an mDNS service for auto-discovery
func (s *Server) startMDNS() error {
	txtRecords := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=" + RouteWebSocket,
		fmt.Sprintf("tls=%t", s.tlsEnabled()),
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, s.config.Port, txtRecords, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.mdnsServer = server
	s.logger.Info("mDNS service registered", zap.String("service", MDNSServiceName), zap.Int("port", s.config.Port))
	return nil
}

func (s *Server) stopMDNS() {
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
		s.logger.Info("mDNS service stopped")
	}
}

// handleWebSocket upgrades the controlling client's connection and serves
// its configuration requests until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret")
	if !s.sessions.Authorize(secret) {
		s.logger.Warn("websocket rejected: invalid API secret", zap.String("remote", r.RemoteAddr))
		http.Error(w, "Unauthorized: Invalid API secret", http.StatusUnauthorized)
		return
	}

	// first come, first served
	token := s.sessions.Acquire(secret, r.Header.Get("Origin"), r.RemoteAddr)
	if token == "" {
		s.logger.Warn("websocket rejected: session already claimed", zap.String("remote", r.RemoteAddr))
		http.Error(w, "Session already claimed by another client", http.StatusConflict)
		return
	}
	defer s.sessions.Release(token)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn)
	log := s.logger.With(zap.String("client", client.ID))
	log.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	s.clients.Register(client)
	defer func() {
		s.clients.Unregister(client)
		client.Close()
		log.Info("websocket disconnected")
	}()

	s.sendInitialState(client)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req protocol.WebSocketRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Warn("failed to parse websocket message", zap.Error(err))
			client.SendError("", protocol.ErrCodeParse, "Invalid message format")
			continue
		}

		handler, ok := s.registry.Get(req.Type)
		if !ok {
			log.Warn("unknown message type", zap.String("type", req.Type))
			client.SendError(req.ID, protocol.ErrCodeUnknownType, fmt.Sprintf("Unknown message type: %s", req.Type))
			continue
		}

		// Error already sent by handler, just log it
		if err := handler(r.Context(), client, req); err != nil {
			log.Debug("handler error", zap.String("type", req.Type), zap.Error(err))
		}
	}
}

func (s *Server) sendInitialState(client *Client) {
	client.WriteJSON(protocol.WebSocketMessage{
		Type:    protocol.WSTypeConfig,
		Payload: ConfigPayload(s.config.Operation.Snapshot()),
	})
	for _, name := range s.Readers() {
		client.WriteJSON(protocol.WebSocketMessage{
			Type:    protocol.WSTypeReaderStatus,
			Payload: protocol.ReaderStatusPayload{Reader: name, Status: protocol.ReaderAttached},
		})
	}
	if last, ok := s.config.Cache.Last(); ok {
		client.WriteJSON(protocol.WebSocketMessage{
			Type:    protocol.WSTypeOperationComplete,
			Payload: last,
		})
	}
}
