package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Correlation headers accepted from clients and echoed on every response.
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceID     = "X-Trace-ID"
	headerTraceparent = "traceparent"
)

// Correlation ties the log lines of one request together.
type Correlation struct {
	RequestID string
	TraceID   string
}

type correlationKey struct{}

func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

// CorrelationFrom returns the ids stored by WithRequestAndTrace, or the zero
// value outside a request.
func CorrelationFrom(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

func RequestIDFromContext(ctx context.Context) string { return CorrelationFrom(ctx).RequestID }

func TraceIDFromContext(ctx context.Context) string { return CorrelationFrom(ctx).TraceID }

// Logger is the default logger bound to the request's correlation ids.
func Logger(ctx context.Context) *slog.Logger {
	c := CorrelationFrom(ctx)
	return slog.Default().With("request_id", c.RequestID, "trace_id", c.TraceID)
}

// WithRequestAndTrace resolves the correlation ids of a request, stores them
// in its context and echoes them as response headers.
//
// The request id comes from X-Request-ID, then chi's RequestID middleware,
// then a fresh uuid. The trace id comes from X-Trace-ID, then the trace-id
// field of a W3C traceparent header, then a fresh uuid.
func WithRequestAndTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := resolve(r)
		w.Header().Set(HeaderRequestID, c.RequestID)
		w.Header().Set(HeaderTraceID, c.TraceID)

		ctx := WithCorrelation(r.Context(), c)
		Logger(ctx).DebugContext(ctx, "incoming request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func resolve(r *http.Request) Correlation {
	c := Correlation{
		RequestID: firstNonEmpty(r.Header.Get(HeaderRequestID), chimw.GetReqID(r.Context())),
		TraceID:   firstNonEmpty(r.Header.Get(HeaderTraceID), traceparentID(r.Header.Get(headerTraceparent))),
	}
	if c.RequestID == "" {
		c.RequestID = uuid.NewString()
	}
	if c.TraceID == "" {
		c.TraceID = uuid.NewString()
	}
	return c
}

// traceparentID extracts the trace-id of a version-00 traceparent value.
func traceparentID(v string) string {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || strings.Trim(parts[1], "0") == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
