// Package ports defines the interfaces between the gateway's core components,
// so each can be tested against fakes.
package ports

import (
	"context"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// UpstreamClient sends one GraphQL request to an upstream service.
type UpstreamClient interface {
	Do(ctx context.Context, svc upstream.Service, req upstream.Request) (*upstream.Result, error)
}

// GateProvider returns the admission gate currently in force.
type GateProvider interface {
	Load() *admission.Gate
}

// HealthReporter exposes the last known health of every upstream service.
type HealthReporter interface {
	Statuses() []upstream.Status
}

// Scheduler runs periodic background work.
type Scheduler interface {
	Start() error
	Stop()
}

// Watcher reacts to changes of files on disk.
type Watcher interface {
	Start() error
	Stop()
}
