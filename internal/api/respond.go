package api

import (
	"encoding/json"
	"net/http"

	"veripass/internal/common/errors"
)

type errorBody struct {
	Error      string              `json:"error"`
	Message    string              `json:"message"`
	RedirectTo string              `json:"redirect_to,omitempty"`
	Fields     []errors.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeStateConflict:
		return http.StatusConflict
	case errors.ErrCodePermissionDenied:
		return http.StatusForbidden
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeNotificationSendFailed, errors.ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes the JSON error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	if statusFor(stdErr.Code) >= http.StatusInternalServerError {
		h.logger.Error("request error", map[string]interface{}{
			"path":      r.URL.Path,
			"requestId": requestIDFrom(r.Context()),
			"code":      string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
	writeErrorBody(w, stdErr)
}

func writeErrorBody(w http.ResponseWriter, stdErr *errors.StandardError) {
	status := statusFor(stdErr.Code)
	body := errorBody{
		Error:      string(stdErr.Code),
		Message:    stdErr.Message,
		RedirectTo: stdErr.RedirectTo(),
		Fields:     stdErr.Fields,
	}
	if status == http.StatusInternalServerError {
		body.Message = "Internal server error"
	}
	writeJSON(w, status, body)
}

func badRequest(message string) error {
	return errors.NewValidationError(message)
}
