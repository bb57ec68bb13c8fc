package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/cookieauth"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Message   string                      `json:"message"`
	ErrorCode string                      `json:"errorCode,omitempty"`
	Errors    []cookieauth.FieldViolation `json:"errors,omitempty"`
}

// MessageBody is the JSON shape of responses that only confirm an action.
type MessageBody struct {
	Message string `json:"message"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageBody{Message: msg})
}

// WriteError maps err onto its status and body. Internal errors are logged
// and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ae *cookieauth.Error
	if !errors.As(err, &ae) || ae.Kind == cookieauth.KindInternal {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
		}
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{Message: "Internal server error"})
		return
	}

	WriteJSON(w, ae.Kind.HTTPStatus(), ErrorBody{
		Message:   ae.Message,
		ErrorCode: ae.Code,
		Errors:    ae.Fields,
	})
}
