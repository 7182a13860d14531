// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of pinging one dependency.
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    SystemStatus `json:"status"`
	Required  bool         `json:"required"`
	LatencyMS float64      `json:"latency_ms"`
	Error     string       `json:"error,omitempty"`
}

// PoolStats is a snapshot of the database connection pool.
type PoolStats struct {
	MaxOpen      int   `json:"max_open"`
	Open         int   `json:"open"`
	InUse        int   `json:"in_use"`
	Idle         int   `json:"idle"`
	WaitCount    int64 `json:"wait_count"`
	WaitDuration int64 `json:"wait_duration_ms"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	CheckedAt    time.Time                  `json:"checked_at"`
	Components   map[string]ComponentHealth `json:"components"`
	Pool         *PoolStats                 `json:"pool,omitempty"`
}
