// Package metrics exposes the gateway's Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

const namespace = "graphgw"

// Metrics holds every collector of the gateway.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	QueryCost        prometheus.Histogram
	Budget           prometheus.Gauge
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "evaluations_total",
				Help:      "Admission evaluations by outcome (admitted, rejected)",
			},
			[]string{"outcome"},
		),
		QueryCost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "query_cost",
				Help:      "Computed cost of evaluated queries",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		Budget: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "budget",
				Help:      "Maximum admitted query cost of the gate in force",
			},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream calls by service and outcome (ok, graphql_error, failed)",
			},
			[]string{"service", "outcome"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Upstream call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
	}

	reg.MustRegister(m.Evaluations, m.QueryCost, m.Budget, m.UpstreamRequests, m.UpstreamDuration)
	return m
}

// ObserveCost implements admission.Observer.
func (m *Metrics) ObserveCost(report admission.CostReport) {
	outcome := "admitted"
	if !report.Admitted {
		outcome = "rejected"
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	m.QueryCost.Observe(float64(report.Cost))
}

// SetBudget records the budget of a newly installed gate.
func (m *Metrics) SetBudget(budget int) {
	m.Budget.Set(float64(budget))
}

// InstrumentClient wraps an upstream client with request metrics.
func (m *Metrics) InstrumentClient(next ports.UpstreamClient) ports.UpstreamClient {
	return &instrumentedClient{next: next, metrics: m}
}

type instrumentedClient struct {
	next    ports.UpstreamClient
	metrics *Metrics
}

func (c *instrumentedClient) Do(ctx context.Context, svc upstream.Service, req upstream.Request) (*upstream.Result, error) {
	start := time.Now()
	res, err := c.next.Do(ctx, svc, req)
	c.metrics.UpstreamDuration.WithLabelValues(svc.Name).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case len(res.Errors) > 0:
		outcome = "graphql_error"
	}
	c.metrics.UpstreamRequests.WithLabelValues(svc.Name, outcome).Inc()
	return res, err
}

var _ admission.Observer = (*Metrics)(nil)
