package web

// errors.go provides unified error responses for the web layer.
//
// The technical error is logged with the request ID; the client gets the
// mapped user message as JSON, as an HTMX fragment, or as plain text.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/tabular"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error from the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTooBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge), errors.Is(err, core.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotCSV):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, tabular.ErrEmptyInput),
		errors.Is(err, tabular.ErrMalformedRow),
		errors.Is(err, tabular.ErrTruncatedInput):
		return http.StatusUnprocessableEntity
	case core.IsUserFacing(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logLevel := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
		logLevel = slog.LevelError
	}
	slog.Log(r.Context(), logLevel, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	if errors.Is(err, core.ErrTooBusy) {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		writeJSON(w, statusCode, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
	default:
		http.Error(w, core.FormatUserError(err), statusCode)
	}
}

func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Error("render error alert", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON is true for API clients. Browser form posts to /api (Accept
// text/html) get plain text instead.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
