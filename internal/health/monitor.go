package health

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/vietddude/docsite/internal/infra/storage"
)

// StatsProvider exposes connection pool statistics.
type StatsProvider interface {
	Stats() sql.DBStats
}

type component struct {
	name     string
	pinger   storage.Pinger
	required bool
}

// Monitor aggregates health status from the service's dependencies.
type Monitor struct {
	components []component
	stats      StatsProvider
	timeout    time.Duration
	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Reports are cached for cacheFor
// so frequent probes do not hammer the dependencies.
func NewMonitor(cacheFor time.Duration) *Monitor {
	return &Monitor{
		timeout:  2 * time.Second,
		cacheFor: cacheFor,
	}
}

// AddRequired registers a dependency whose failure makes the service critical.
func (m *Monitor) AddRequired(name string, p storage.Pinger) *Monitor {
	m.components = append(m.components, component{name: name, pinger: p, required: true})
	return m
}

// AddOptional registers a dependency whose failure only degrades the service.
func (m *Monitor) AddOptional(name string, p storage.Pinger) *Monitor {
	m.components = append(m.components, component{name: name, pinger: p})
	return m
}

// WithPoolStats includes connection pool statistics in reports.
func (m *Monitor) WithPoolStats(s StatsProvider) *Monitor {
	m.stats = s
	return m
}

// CheckHealth pings every dependency and aggregates the result.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cacheFor > 0 && !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		CheckedAt:    time.Now().UTC(),
		Components:   make(map[string]ComponentHealth, len(m.components)),
	}

	for _, c := range m.components {
		health := m.check(ctx, c)
		report.Components[c.name] = health

		// Worst case wins
		switch {
		case health.Status == StatusHealthy:
		case c.required:
			report.SystemStatus = StatusCritical
		case report.SystemStatus == StatusHealthy:
			report.SystemStatus = StatusDegraded
		}
	}

	if m.stats != nil {
		s := m.stats.Stats()
		report.Pool = &PoolStats{
			MaxOpen:      s.MaxOpenConnections,
			Open:         s.OpenConnections,
			InUse:        s.InUse,
			Idle:         s.Idle,
			WaitCount:    s.WaitCount,
			WaitDuration: s.WaitDuration.Milliseconds(),
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) check(ctx context.Context, c component) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.pinger.Ping(ctx)
	health := ComponentHealth{
		Name:      c.name,
		Status:    StatusHealthy,
		Required:  c.required,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		health.Status = StatusCritical
		health.Error = err.Error()
	}
	return health
}
