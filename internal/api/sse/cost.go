package sse

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
)

// CostEventName is the SSE event name of cost reports.
const CostEventName = "cost"

// CostReportBus publishes every admission cost report to SSE subscribers.
type CostReportBus struct {
	*EventBus[admission.CostReport]
}

// NewCostReportBus creates a CostReportBus.
func NewCostReportBus(bufferSize int) *CostReportBus {
	return &CostReportBus{EventBus: NewEventBus[admission.CostReport](bufferSize)}
}

// ObserveCost publishes report without blocking the evaluation.
func (b *CostReportBus) ObserveCost(report admission.CostReport) {
	b.Publish(report)
}

// ParseFilter builds a subscriber filter from the query parameters
// "operation" and "rejected". It returns nil when no parameter is set.
func ParseFilter(c *gin.Context) func(admission.CostReport) bool {
	operation := c.Query("operation")
	rejectedOnly := c.Query("rejected") == "true"
	if operation == "" && !rejectedOnly {
		return nil
	}
	return func(r admission.CostReport) bool {
		if operation != "" && r.OperationName != operation {
			return false
		}
		if rejectedOnly && r.Admitted {
			return false
		}
		return true
	}
}

// Handler streams cost reports until the client disconnects.
func (b *CostReportBus) Handler(c *gin.Context) {
	sub := b.Subscribe(ParseFilter(c))
	defer b.Unsubscribe(sub.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Send the headers now so clients see the stream open before any event.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case report, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(CostEventName, report)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

var _ admission.Observer = (*CostReportBus)(nil)
