package tls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dotside-studios/tagstation/buildinfo"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BootstrapServer hands the local CA to other devices over plain HTTP so
// they can trust the station's wss:// endpoint.
type BootstrapServer struct {
	manager *Manager
	port    int
	logger  *zap.Logger
}

// NewBootstrapServer serves manager's CA on port.
func NewBootstrapServer(manager *Manager, port int, logger *zap.Logger) *BootstrapServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BootstrapServer{manager: manager, port: port, logger: logger.Named("bootstrap")}
}

// Handler returns the bootstrap routes.
func (s *BootstrapServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ca.pem", s.handleCACert).Methods(http.MethodGet)
	r.HandleFunc("/ca.crt", s.handleCACert).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleInstructions).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done.
func (s *BootstrapServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fields := []zap.Field{zap.Int("port", s.port)}
	if fp, err := s.manager.CAFingerprint(); err == nil {
		fields = append(fields, zap.String("caFingerprint", fp))
	}
	s.logger.Info("CA bootstrap server running", fields...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bootstrap server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}

func (s *BootstrapServer) handleCACert(w http.ResponseWriter, r *http.Request) {
	caCert, err := s.manager.ReadCACert()
	if err != nil {
		http.Error(w, "CA certificate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", buildinfo.Name+"-ca.pem"))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(caCert)

	s.logger.Info("CA certificate downloaded", zap.String("remote", r.RemoteAddr))
}

func (s *BootstrapServer) handleInstructions(w http.ResponseWriter, r *http.Request) {
	fp, err := s.manager.CAFingerprint()
	if err != nil {
		fp = "unavailable"
	}
	hosts, _ := LocalHosts()

	var b strings.Builder
	fmt.Fprintf(&b, "%s certificate authority\n\n", buildinfo.DisplayName)
	fmt.Fprintf(&b, "Install the CA to connect to the station over wss://.\n")
	fmt.Fprintf(&b, "Check that this fingerprint matches the station's log before trusting it.\n\n")
	fmt.Fprintf(&b, "SHA-256: %s\n\nDownload:\n", fp)
	for _, h := range hosts {
		fmt.Fprintf(&b, "  http://%s:%d/ca.pem\n", h, s.port)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(b.String()))
}
