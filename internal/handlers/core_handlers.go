package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gator-chat/internal/api"
	"gator-chat/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleHealth reports liveness and live connection counters.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "healthy",
			"connections":   s.Hub.Total(),
			"subscriptions": s.Registry.Len(),
			"uptime":        s.Metrics.Uptime().Round(time.Second).String(),
			"server_time":   time.Now().UTC(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps err to its HTTP status. Infrastructure errors are logged
// and their cause is not sent to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		appErr = utils.NewAppError(utils.ErrDatabase, "internal error", err)
	}
	status := utils.AppErrorToHTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, api.ErrorResponse{Code: appErr.Code, Error: appErr.Message})
}

// decodeJSON reads an optional JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return utils.NewValidationError("invalid request body")
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, utils.NewValidationError("invalid " + name)
	}
	return id, nil
}
