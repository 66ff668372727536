package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"mkoba/internal/core"
	"mkoba/internal/log"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) (int, errorBody) {
	var (
		ve *core.ValidationError
		pe *core.PreconditionError
		se *core.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Field: ve.Field}
	case errors.As(err, &pe):
		if pe.Kind == core.KindPermission {
			return http.StatusForbidden, errorBody{Error: pe.Error()}
		}
		return http.StatusConflict, errorBody{Error: pe.Error()}
	case core.IsNotFound(err):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.As(err, &se):
		return http.StatusServiceUnavailable, errorBody{Error: "store unavailable, the change was not applied", Retryable: true}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

// writeError logs err and writes its mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := statusFor(err)
	ctx := r.Context()
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, log.ComponentHTTP, op, nil)
	} else {
		log.FromContext(ctx).WarnContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorType(err),
			log.FieldError, err.Error())
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, please try again later",
		Retryable: true,
	})
}

// writeAttachment sends data as a file download named filename.
func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
