package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// Health statuses.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthResponse is the response of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Upstreams []upstream.Status `json:"upstreams"`
}

// Health reports the process as ok and lists the last probe of every
// upstream. The status is degraded while any upstream is down; the endpoint
// still answers 200 because the gateway itself is serving.
func Health(reporter ports.HealthReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{Status: HealthOK, Upstreams: []upstream.Status{}}
		if reporter != nil {
			resp.Upstreams = reporter.Statuses()
		}
		for _, s := range resp.Upstreams {
			if s.State == upstream.StateDown {
				resp.Status = HealthDegraded
				break
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
