package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/auth"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(code string) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and the JSON error body. Internal
// and integrity errors are logged with detail and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) {
		err = apperr.Unauthorized(err)
	}

	code := apperr.Code(err)
	message := err.Error()
	switch code {
	case apperr.CodeDataIntegrity:
		s.logger.Error("Data integrity error", "path", r.URL.Path, "error", err)
		message = "stored expense data is inconsistent; the report was not produced"
	case apperr.CodeInternal:
		s.logger.Error("Internal error", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	writeJSON(w, statusFor(code), errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
