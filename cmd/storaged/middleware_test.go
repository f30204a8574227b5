package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/storaged/internal/config"
	logpkg "github.com/kailas-cloud/storaged/internal/logger"
)

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := requestLogger(zap.New(core))(jsonRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"internal_error"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Error("expected panic to be logged")
	}
}

func TestRequestLogger_LogsRoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID, requestLogger(logger))
	r.Get("/v1/graph/neighbors/{id}", func(w http.ResponseWriter, r *http.Request) {
		logpkg.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/graph/neighbors/secret-id", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	inside := logs.FilterMessage("inside").All()
	if len(inside) != 1 || inside[0].ContextMap()["request_id"] == "" {
		t.Fatalf("request logger not propagated: %+v", inside)
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/v1/graph/neighbors/{id}" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("expected status 418, got %v", fields["status"])
	}
}

func TestRequestLogger_ServerErrorsAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := requestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn line, got %+v", entries)
	}
}

func TestBuildPorts_Memory(t *testing.T) {
	p, err := buildPorts(config.BackendsConfig{
		Vector: config.BackendMemory,
		Chat:   config.BackendMemory,
		Graph:  config.BackendMemory,
	}, "storaged:", &engines{})
	if err != nil {
		t.Fatalf("buildPorts: %v", err)
	}
	for name, got := range map[string]string{"vector": p.vector.Name(), "chat": p.chat.Name(), "graph": p.graph.Name()} {
		if got != config.BackendMemory {
			t.Errorf("%s port mounted %q", name, got)
		}
	}
}

func TestBuildPorts_Unsupported(t *testing.T) {
	_, err := buildPorts(config.BackendsConfig{
		Vector: config.BackendMemory,
		Chat:   config.BackendNeo4j,
		Graph:  config.BackendMemory,
	}, "", &engines{})
	if err == nil {
		t.Fatal("expected error for neo4j chat backend")
	}
}
