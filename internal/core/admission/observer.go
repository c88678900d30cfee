package admission

import (
	"go.uber.org/zap"
)

// Observer receives the report of every completed evaluation. Observers are
// advisory telemetry: they run synchronously inside Evaluate, so they must not
// block, and a panicking observer is recovered and logged.
type Observer interface {
	ObserveCost(report CostReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(report CostReport)

// ObserveCost calls f.
func (f ObserverFunc) ObserveCost(report CostReport) { f(report) }

// LogObserver logs the computed cost of every request.
type LogObserver struct {
	Logger *zap.Logger
}

// NewLogObserver creates a LogObserver writing to l.
func NewLogObserver(l *zap.Logger) *LogObserver {
	return &LogObserver{Logger: l}
}

// ObserveCost logs admitted requests at debug and rejected ones at info.
func (o *LogObserver) ObserveCost(report CostReport) {
	fields := []zap.Field{
		zap.String("requestId", report.RequestID),
		zap.String("operationName", report.OperationName),
		zap.Int("cost", report.Cost),
		zap.Int("budget", report.Budget),
	}
	if report.Admitted {
		o.Logger.Debug("Query cost computed", fields...)
		return
	}
	o.Logger.Info("Query rejected as too expensive", fields...)
}

var (
	_ Observer = ObserverFunc(nil)
	_ Observer = (*LogObserver)(nil)
)
