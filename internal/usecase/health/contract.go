package health

import "context"

// Pinger probes one mounted backend.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
