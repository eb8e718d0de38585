package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"okeanchat/internal/observability/metrics"
)

func TestWithRequestAndTraceKeepsIncomingIDs(t *testing.T) {
	var gotReq, gotTrace string
	h := WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = RequestIDFromContext(r.Context())
		gotTrace = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotReq != "req-1" {
		t.Fatalf("request id = %q", gotReq)
	}
	if gotTrace == "" {
		t.Fatalf("expected generated trace id")
	}
	if rec.Header().Get("X-Trace-ID") != gotTrace {
		t.Fatalf("trace id not echoed")
	}
}

func TestCorrelationFallbacks(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	cases := []struct {
		name    string
		headers map[string]string
		chained bool
		wantReq string
		wantTr  string
	}{
		{"traceparent", map[string]string{"traceparent": "00-" + traceID + "-00f067aa0ba902b7-01"}, false, "", traceID},
		{"explicit trace wins", map[string]string{"X-Trace-ID": "t-1", "traceparent": "00-" + traceID + "-00f067aa0ba902b7-01"}, false, "", "t-1"},
		{"zero traceparent ignored", map[string]string{"traceparent": "00-00000000000000000000000000000000-00f067aa0ba902b7-01"}, false, "", ""},
		{"chi request id", nil, true, "chi", ""},
		{"explicit request id wins over chi", map[string]string{"X-Request-ID": "req-9"}, true, "req-9", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Correlation
			var h http.Handler = WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = CorrelationFrom(r.Context())
			}))
			if tc.chained {
				h = chimw.RequestID(h)
			}
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got.RequestID == "" || got.TraceID == "" {
				t.Fatalf("ids must always be set: %+v", got)
			}
			if tc.wantTr != "" && got.TraceID != tc.wantTr {
				t.Fatalf("trace id = %q, want %q", got.TraceID, tc.wantTr)
			}
			switch {
			case tc.wantReq == "chi":
				if !strings.Contains(got.RequestID, "/") {
					t.Fatalf("expected chi-style request id, got %q", got.RequestID)
				}
			case tc.wantReq != "" && got.RequestID != tc.wantReq:
				t.Fatalf("request id = %q, want %q", got.RequestID, tc.wantReq)
			}
		})
	}

	if c := CorrelationFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()); c != (Correlation{}) {
		t.Fatalf("expected zero correlation outside a request, got %+v", c)
	}
}

func TestWithMetricsRecordsStatusAndPattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithMetrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter keyed by route pattern to grow by 1, got %v", after-before)
	}
}
