package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mesaqr/api/internal/apperr"
	"github.com/mesaqr/api/internal/middleware"
	"github.com/mesaqr/api/internal/service"
	"go.uber.org/zap"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	// Retryable tells clients the same request may succeed if sent again.
	Retryable bool `json:"retryable,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindBadRequest:         http.StatusBadRequest,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindForbidden:          http.StatusForbidden,
	apperr.KindTooManyRequests:    http.StatusTooManyRequests,
	apperr.KindPreconditionFailed: http.StatusPreconditionFailed,
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeError maps err to a status code. Anything that is not an
// *apperr.Error is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status, ok := kindStatus[appErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{
			Error:     appErr.Message,
			Code:      string(appErr.Kind),
			Details:   appErr.Details,
			Retryable: apperr.Retryable(appErr.Kind),
		})
		return
	}

	logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: string(apperr.KindBadRequest)})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// actorFrom builds the service actor from the authenticated claims.
func actorFrom(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, TenantID: claims.TenantID, Role: claims.Role}, true
}

func unauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
}
