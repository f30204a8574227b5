package qdrant

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/storaged/internal/adapter/porttest"
	"github.com/kailas-cloud/storaged/internal/domain"
)

func TestVectorStore_Conformance(t *testing.T) {
	addr := os.Getenv("TEST_QDRANT_ADDR")
	if addr == "" {
		t.Skip("TEST_QDRANT_ADDR not set")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("parsing TEST_QDRANT_ADDR: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewVectorStore(ctx, Config{Host: host, Port: port})
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	porttest.RunVector(t, s)
}

func TestCollectionName_IsolatesTenants(t *testing.T) {
	a := collectionName("acme", "docs")
	b := collectionName("globex", "docs")
	c := collectionName("acme\x00d", "ocs")

	if a == b || a == c {
		t.Errorf("collection names collide: %s %s %s", a, b, c)
	}
	if a != collectionName("acme", "docs") {
		t.Error("collection name is not deterministic")
	}
	if len(a) != len("sa_")+32 {
		t.Errorf("unexpected length of %q", a)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if pointID("x").GetUuid() != pointID("x").GetUuid() {
		t.Error("point id is not deterministic")
	}
	if pointID("x").GetUuid() == pointID("y").GetUuid() {
		t.Error("distinct ids share a point id")
	}
}

func TestNeedMore(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		k      int
		limit  int
		want   bool
	}{
		{"short page is complete", []float32{0.9, 0.8}, 2, 4, false},
		{"clear gap", []float32{0.9, 0.8, 0.5, 0.1}, 2, 4, false},
		{"tie reaches the end", []float32{0.9, 0.8, 0.8, 0.8}, 2, 4, true},
		{"near tie within float32 noise", []float32{0.9, 0.8, 0.79999, 0.79999}, 2, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needMore(tt.scores, tt.k, tt.limit); got != tt.want {
				t.Errorf("needMore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineErr(t *testing.T) {
	err := engineErr("query", status.Error(codes.Unavailable, "down"))
	if !errors.Is(err, domain.ErrEngine) || !domain.IsRetryable(err) {
		t.Errorf("expected retryable engine error, got %v", err)
	}

	err = engineErr("query", status.Error(codes.InvalidArgument, "bad"))
	if domain.IsRetryable(err) {
		t.Errorf("invalid argument must not be retryable: %v", err)
	}
}
