// Package scheduler probes the health of upstream services on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// DefaultSchedule probes every 30 seconds.
const DefaultSchedule = "@every 30s"

// probeQuery is answered by every GraphQL server without touching resolvers.
const probeQuery = "query HealthProbe { __typename }"

// ValidateSchedule checks a schedule in the standard 5-field format
// (minute hour day month weekday) or a descriptor such as "@every 30s".
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %v", errs.ErrInvalidInput, schedule, err)
	}
	return nil
}

// HealthScheduler periodically sends a probe query to every upstream and keeps
// the latest result per service.
type HealthScheduler struct {
	cron     *cron.Cron
	registry *upstream.Registry
	client   ports.UpstreamClient
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	statuses map[string]upstream.Status
	running  bool
}

// NewHealthScheduler creates a scheduler. An empty schedule uses DefaultSchedule.
func NewHealthScheduler(registry *upstream.Registry, client ports.UpstreamClient, schedule string) *HealthScheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	statuses := make(map[string]upstream.Status)
	for _, svc := range registry.Services() {
		statuses[svc.Name] = upstream.Status{Service: svc.Name, URL: svc.URL, State: upstream.StateUnknown}
	}
	return &HealthScheduler{
		cron:     cron.New(),
		registry: registry,
		client:   client,
		schedule: schedule,
		timeout:  5 * time.Second,
		logger:   logger.Named("core.scheduler"),
		statuses: statuses,
	}
}

// Start registers the probe job and starts the cron runner. It is idempotent.
func (s *HealthScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("Health scheduler is already running")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.ProbeAll(context.Background())
	}); err != nil {
		return err
	}

	s.logger.Info("Starting health scheduler", zap.String("schedule", s.schedule))
	s.cron.Start()
	s.running = true
	go s.ProbeAll(context.Background())
	return nil
}

// Stop stops the cron runner and waits for a running probe to finish.
func (s *HealthScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("Health scheduler is not running")
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping health scheduler")
	<-s.cron.Stop().Done()
}

// ProbeAll probes every service concurrently and records the results.
func (s *HealthScheduler) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, svc := range s.registry.Services() {
		wg.Add(1)
		go func(svc upstream.Service) {
			defer wg.Done()
			s.record(s.probe(ctx, svc))
		}(svc)
	}
	wg.Wait()
}

func (s *HealthScheduler) probe(ctx context.Context, svc upstream.Service) upstream.Status {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status := upstream.Status{Service: svc.Name, URL: svc.URL, CheckedAt: time.Now()}
	result, err := s.client.Do(ctx, svc, upstream.Request{Query: probeQuery, OperationName: "HealthProbe"})
	switch {
	case err != nil:
		status.State = upstream.StateDown
		status.Error = err.Error()
	case len(result.Errors) > 0:
		status.State = upstream.StateDown
		status.Error = result.Errors.Error()
	default:
		status.State = upstream.StateUp
	}
	return status
}

func (s *HealthScheduler) record(status upstream.Status) {
	s.mu.Lock()
	previous := s.statuses[status.Service]
	s.statuses[status.Service] = status
	s.mu.Unlock()

	if previous.State != status.State {
		s.logger.Info("Upstream health changed",
			zap.String("service", status.Service),
			zap.String("from", previous.State),
			zap.String("to", status.State),
			zap.String("error", status.Error),
		)
	}
}

// Statuses returns the latest status of every service in configuration order.
func (s *HealthScheduler) Statuses() []upstream.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := s.registry.Services()
	out := make([]upstream.Status, 0, len(services))
	for _, svc := range services {
		out = append(out, s.statuses[svc.Name])
	}
	return out
}

var (
	_ ports.Scheduler      = (*HealthScheduler)(nil)
	_ ports.HealthReporter = (*HealthScheduler)(nil)
)
