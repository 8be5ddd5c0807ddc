package httpapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oshokin/doorwatch/internal/api/dto"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/repository/subscription"
)

// Client-facing error messages.
const (
	msgSecretKeyMissing    = "Secret key missing from REST call"
	msgSecretKeyInvalid    = "Invalid secret key received!"
	msgUUIDMissing         = "No uuid in checkSubscription call"
	msgSubscriptionMissing = "No subscription in subscribe call"
	msgBadJSON             = "Request body is not valid JSON"
	msgStoreUnavailable    = "Subscription store is unavailable"
	msgInternal            = "Unexpected server error"
)

// secretKeyParam is the query parameter carrying the shared secret.
const secretKeyParam = "secretKey"

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewStatus(s.door.Snapshot()))
}

func (s *Server) handleTransition(open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.checkSecretKey(w, r) {
			return
		}

		result := s.door.ApplyTransition(r.Context(), open)
		writeJSON(w, http.StatusOK, dto.NewTransition(result))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewHistory(s.door.History()))
}

func (s *Server) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID json.RawMessage `json:"uuid"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, msgBadJSON)
		return
	}

	if len(req.UUID) == 0 {
		s.writeError(w, r, http.StatusForbidden, msgUUIDMissing)
		return
	}

	// A null or non-string uuid matches no subscription.
	var id string
	if err := json.Unmarshal(req.UUID, &id); err != nil || bytes.Equal(req.UUID, []byte("null")) {
		writeJSON(w, http.StatusOK, map[string]bool{"found": false})
		return
	}

	found, err := s.door.SubscriberExists(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, msgBadJSON)
		return
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		s.writeError(w, r, http.StatusForbidden, msgSubscriptionMissing)
		return
	}

	if !json.Valid(body) {
		s.writeError(w, r, http.StatusBadRequest, msgBadJSON)
		return
	}

	id, err := s.door.RegisterSubscriber(r.Context(), body)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"uuid": id})
}

func (s *Server) handleAppConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.appConfig)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checkSecretKey writes a 403 and returns false unless the request carries the shared secret.
func (s *Server) checkSecretKey(w http.ResponseWriter, r *http.Request) bool {
	query := r.URL.Query()
	if !query.Has(secretKeyParam) {
		s.writeError(w, r, http.StatusForbidden, msgSecretKeyMissing)
		return false
	}

	received := query.Get(secretKeyParam)
	if subtle.ConstantTimeCompare([]byte(received), []byte(s.secretKey)) != 1 {
		s.writeError(w, r, http.StatusForbidden, msgSecretKeyInvalid)
		return false
	}

	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscription.ErrEmptyEndpoint):
		s.writeError(w, r, http.StatusForbidden, msgSubscriptionMissing)
	case errors.Is(err, subscription.ErrUnavailable):
		logger.ErrorKV(r.Context(), "Subscription store failed", "path", r.URL.Path, "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, msgStoreUnavailable)
	default:
		logger.ErrorKV(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logger.WarnKV(r.Context(), "Request rejected",
		"path", r.URL.Path,
		"status", status,
		"reason", message,
	)

	writeJSON(w, status, dto.Error{
		Error: message,
		Time:  dto.FormatTime(time.Now().In(s.location)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
