package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps a guard failure to its HTTP status.
func statusFor(kind tasks.Kind) int {
	switch kind {
	case tasks.KindInvalidTransition, tasks.KindInactive:
		return http.StatusConflict
	case tasks.KindPhotosIncomplete:
		return http.StatusPreconditionFailed
	case tasks.KindOutsideGeofence, tasks.KindNotHolder, tasks.KindForbidden:
		return http.StatusForbidden
	case tasks.KindLocationRequired:
		return http.StatusPreconditionRequired
	case tasks.KindNotFound:
		return http.StatusNotFound
	case tasks.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *tasks.Error
	if errors.As(err, &e) {
		writeJSON(w, statusFor(e.Kind), errorBody{Error: string(e.Kind), Message: e.Message})
		return
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
}

// decodeBody reads an optional JSON body into v and validates it. An empty
// body is validated as the zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return &tasks.Error{Kind: tasks.KindValidation, Message: "invalid request body: " + err.Error()}
	}
	if err := models.Validate(v); err != nil {
		return &tasks.Error{Kind: tasks.KindValidation, Message: err.Error()}
	}
	return nil
}

// logRequests writes one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.LogAttrs(r.Context(), levelFor(status), "http request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
