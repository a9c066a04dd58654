package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budget/internal/auth"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

var (
	errRateLimited  = errors.New("rate limit exceeded, please try again later")
	errMissingToken = errors.New("missing bearer token")
	errUserMismatch = errors.New("userId does not match the authenticated user")
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Errors  []string `json:"errors,omitempty"`
}

// MessageResponse acknowledges deletes.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

// classify maps an error onto a status code, an error code and the message
// safe to show to the caller.
func classify(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Status: "error", Message: err.Error()}

	var many *core.ValidationErrors
	switch {
	case errors.As(err, &many):
		resp.Code = applog.ErrorTypeValidation
		resp.Message = "validation failed"
		resp.Errors = many.Messages()
		return http.StatusBadRequest, resp
	case core.IsValidationError(err):
		resp.Code = applog.ErrorTypeValidation
		return http.StatusBadRequest, resp
	case errors.Is(err, core.ErrNotFound):
		resp.Code = applog.ErrorTypeNotFound
		return http.StatusNotFound, resp
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, errMissingToken), errors.Is(err, auth.ErrInvalidCredentials):
		resp.Code = applog.ErrorTypeAuth
		return http.StatusUnauthorized, resp
	case errors.Is(err, services.ErrForbidden), errors.Is(err, errUserMismatch):
		resp.Code = applog.ErrorTypeAuth
		return http.StatusForbidden, resp
	case errors.Is(err, storage.ErrDuplicate):
		resp.Code = applog.ErrorTypeConflict
		return http.StatusConflict, resp
	case errors.Is(err, errRateLimited):
		resp.Code = "rate_limited"
		return http.StatusTooManyRequests, resp
	default:
		resp.Code = applog.ErrorTypeInternal
		resp.Message = "internal server error"
		return http.StatusInternalServerError, resp
	}
}

// writeError is the single place where errors become HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err).WithErrorType(resp.Code).WithHTTPRequest(r.Method, r.URL.Path, "", "", "").ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err, applog.FieldStatusCode, status)
	}
	writeJSON(w, status, resp)
}
