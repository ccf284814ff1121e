package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dotside-studios/tagstation/buildinfo"
	"github.com/dotside-studios/tagstation/protocol"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// corsMiddleware adds CORS headers and answers preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSecret rejects requests that do not carry the API secret, either
// as a bearer token or as the secret query parameter.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.URL.Query().Get("secret")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			secret = strings.TrimPrefix(auth, "Bearer ")
		}
		if !s.sessions.Authorize(secret) {
			writeError(w, http.StatusUnauthorized, protocol.ErrCodeUnauthorized, "invalid API secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealthCheck provides a health check endpoint (GET /api/v1/health)
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:    "ok",
		Version:   buildinfo.FullVersion(),
		Readers:   len(s.Readers()),
		Session:   s.sessions.Active(),
		Timestamp: time.Now().UTC(),
	})
}

// handleReaders lists attached readers (GET /api/v1/readers)
func (s *Server) handleReaders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.ReadersResponse{Readers: s.Readers()})
}

// handleGetConfig returns the operation configuration (GET /api/v1/config)
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigPayload(s.config.Operation.Snapshot()))
}

// handlePutConfig replaces the operation configuration (PUT /api/v1/config)
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var payload protocol.ConfigPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalidRequest, "invalid configuration: "+err.Error())
		return
	}

	s.config.Operation.Apply(SnapshotFromPayload(payload))
	snap := s.config.Operation.Snapshot()
	s.logger.Info("configuration replaced over HTTP",
		zap.Bool("read", snap.Read),
		zap.Bool("write", snap.Write),
		zap.Bool("readOnly", snap.ReadOnly))

	writeJSON(w, http.StatusOK, ConfigPayload(snap))
}

// handleLastResult returns the latest operation result (GET /api/v1/results/last)
func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	result, ok := s.config.Cache.Last()
	if !ok {
		writeError(w, http.StatusNotFound, protocol.ErrCodeNotFound, "no operation completed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleResultByUID returns the latest result for one tag (GET /api/v1/results/{uid})
func (s *Server) handleResultByUID(w http.ResponseWriter, r *http.Request) {
	uid := strings.ToUpper(mux.Vars(r)["uid"])
	result, ok := s.config.Cache.ForUID(uid)
	if !ok {
		writeError(w, http.StatusNotFound, protocol.ErrCodeNotFound, "no result for tag "+uid)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Success: false, Error: message, ErrorCode: code})
}
