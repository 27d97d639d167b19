package engine

import "time"

// #region telemetry

// Telemetry receives counters and durations from the pipeline. Implementations
// must be cheap and must never panic; the engine calls them on the hot path.
type Telemetry interface {
	IncCounter(name string, delta int64)
	ObserveDuration(name string, d time.Duration)
}

// Counter names emitted by the engine.
const (
	MetricDecisions     = "decisions_total"
	MetricDegraded      = "decisions_degraded_total"
	MetricDroppedTraces = "traces_dropped_total"
)

type nopTelemetry struct{}

func (nopTelemetry) IncCounter(string, int64)              {}
func (nopTelemetry) ObserveDuration(string, time.Duration) {}

// #endregion
