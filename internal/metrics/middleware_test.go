package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/vector/{collection}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/vector/secret-name", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/vector/{collection}", "200"))
	if got < 1 {
		t.Errorf("expected request counted under route pattern, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/unavailable", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/missing", "404"},
		{"/unavailable", "503"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tt.path, tt.status))
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tt.path, tt.status))
			if after-before != 1 {
				t.Errorf("expected counter to grow by 1, grew by %f", after-before)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/x/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	for _, path := range []string{"/nope/123", "/v1/x/abc/def"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	if after-before != 2 {
		t.Errorf("expected both unmatched requests counted, grew by %f", after-before)
	}
}

func TestObserveEngineCall(t *testing.T) {
	RegisterEngineMetrics()
	RegisterEngineMetrics()

	before := testutil.ToFloat64(EngineErrorsTotal.WithLabelValues("chat", "redis", "append", "timeout"))
	ObserveEngineCall("chat", "redis", "append", 3*time.Millisecond, "")
	ObserveEngineCall("chat", "redis", "append", 5*time.Second, "timeout")
	after := testutil.ToFloat64(EngineErrorsTotal.WithLabelValues("chat", "redis", "append", "timeout"))

	if after-before != 1 {
		t.Errorf("expected one error counted, got %f", after-before)
	}
	if testutil.CollectAndCount(EngineCallDuration) == 0 {
		t.Error("expected engine call duration observations")
	}
}
