package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

const CorrelationIDHeader = "X-Correlation-ID"

type ctxKey int

const (
	correlationKey ctxKey = iota
	outcomeKey
)

// WithCorrelationID returns a child of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the id bound to ctx, or "" outside a request.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// outcome lets handlers attach a fault to the single completion record
// instead of logging a second line.
type outcome struct {
	err error
}

func noteError(ctx context.Context, err error) {
	if o, ok := ctx.Value(outcomeKey).(*outcome); ok {
		o.err = err
	}
}

// notePanics records a handler panic on the request's outcome and lets
// it continue up to the recovery handler.
func notePanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				noteError(r.Context(), errors.Errorf("panic: %v", v))
				panic(v)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Correlate binds a correlation id to every request, echoes it in the
// response header and logs exactly one record when the request completes.
func Correlate(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		// Set before the handler writes anything; headers are frozen after.
		w.Header().Set(CorrelationIDHeader, id)

		o := &outcome{}
		ctx := WithCorrelationID(r.Context(), id)
		ctx = context.WithValue(ctx, outcomeKey, o)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		}
		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		if o.err != nil {
			attrs = append(attrs, slog.String("error", o.err.Error()))
		}
		log.LogAttrs(ctx, level, "request completed", attrs...)
	})
}

// correlationHandler adds correlation_id to every record logged with a
// request context.
type correlationHandler struct {
	slog.Handler
}

func (h correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return correlationHandler{h.Handler.WithAttrs(attrs)}
}

func (h correlationHandler) WithGroup(name string) slog.Handler {
	return correlationHandler{h.Handler.WithGroup(name)}
}
