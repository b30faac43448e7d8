package tools

import "time"

// Metrics is a point-in-time snapshot of the Executor's cumulative,
// process-lifetime counters. Counts never reset except by process restart.
type Metrics struct {
	TotalRequests  int64            `json:"total_requests"`
	TotalSuccesses int64            `json:"total_successes"`
	RequestCounts  map[string]int64 `json:"request_counts"`
	ErrorCounts    map[string]int64 `json:"error_counts"`
	TotalExecTime  time.Duration    `json:"total_exec_time_ns"`
}

// SuccessRate returns successes/total, or 0 before any request.
func (m Metrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.TotalSuccesses) / float64(m.TotalRequests)
}

// AvgExecTime returns the mean wall time per request, or 0 before any.
func (m Metrics) AvgExecTime() time.Duration {
	if m.TotalRequests == 0 {
		return 0
	}
	return m.TotalExecTime / time.Duration(m.TotalRequests)
}

// Health verdict thresholds over the success rate.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"

	healthyThreshold  = 0.95
	degradedThreshold = 0.80
)

// Health is the read-only health verdict derived from current metrics.
type Health struct {
	Status  string        `json:"status"`
	Details HealthDetails `json:"details"`
}

// HealthDetails supports the verdict with the underlying numbers.
type HealthDetails struct {
	ToolCount    int           `json:"tool_count"`
	SuccessRate  float64       `json:"success_rate"`
	CacheHitRate float64       `json:"cache_hit_rate"`
	AvgExecTime  time.Duration `json:"avg_exec_time_ns"`
}

// healthStatus maps a success rate to a verdict. A process that has served
// no requests yet is healthy: nothing has failed.
func healthStatus(m Metrics) string {
	if m.TotalRequests == 0 {
		return HealthHealthy
	}
	rate := m.SuccessRate()
	switch {
	case rate > healthyThreshold:
		return HealthHealthy
	case rate > degradedThreshold:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
