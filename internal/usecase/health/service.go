// Package health aggregates readiness of the backends mounted behind each port.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/storaged/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates every backend answered.
	Healthy Status = "ok"
	// Degraded indicates at least one backend failed its probe.
	Degraded Status = "degraded"
)

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}

const (
	checkOK    = "ok"
	checkError = "error"
)

// Report aggregates probe results keyed by port name.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes backends concurrently under a shared deadline.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// New creates a Service. checks maps a port name to its backend.
func New(checks map[string]Pinger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{checks: checks, timeout: timeout}
}

// Check pings every backend. A backend shared by several ports is probed
// once per port.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	checks := make(map[string]CheckResult, len(names))
	var g errgroup.Group
	for _, name := range names {
		p := s.checks[name]
		g.Go(func() error {
			res := CheckResult{Backend: p.Name(), Status: checkOK}
			if err := p.Ping(ctx); err != nil {
				res.Status = checkError
				logger.FromContext(ctx).Warn("Readiness probe failed",
					zap.String("port", name),
					zap.String("backend", p.Name()),
					zap.Error(err),
				)
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, c := range checks {
		if c.Status != checkOK {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}
