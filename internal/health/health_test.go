package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// =============================================================================
// Stubs
// =============================================================================

type stubPinger struct {
	mu    sync.Mutex
	err   error
	calls atomic.Int32
}

func (s *stubPinger) Ping(ctx context.Context) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stubPinger) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubStats struct{}

func (stubStats) Stats() sql.DBStats {
	return sql.DBStats{MaxOpenConnections: 10, OpenConnections: 3, InUse: 1, Idle: 2}
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		dbErr    error
		cacheErr error
		want     SystemStatus
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional down", nil, errors.New("redis down"), StatusDegraded},
		{"required down", errors.New("db down"), nil, StatusCritical},
		{"both down", errors.New("db down"), errors.New("redis down"), StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(0).
				AddRequired("database", &stubPinger{err: tt.dbErr}).
				AddOptional("redis", &stubPinger{err: tt.cacheErr})

			report := m.CheckHealth(context.Background())
			assert.Equal(t, tt.want, report.SystemStatus)
			assert.Len(t, report.Components, 2)
			if tt.dbErr != nil {
				assert.Equal(t, tt.dbErr.Error(), report.Components["database"].Error)
			}
		})
	}
}

func TestMonitor_CachesReports(t *testing.T) {
	db := &stubPinger{}
	m := NewMonitor(time.Minute).AddRequired("database", db)

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())

	assert.Equal(t, int32(1), db.calls.Load())
}

func TestMonitor_PoolStats(t *testing.T) {
	m := NewMonitor(0).AddRequired("database", &stubPinger{}).WithPoolStats(stubStats{})

	report := m.CheckHealth(context.Background())
	require.NotNil(t, report.Pool)
	assert.Equal(t, 10, report.Pool.MaxOpen)
	assert.Equal(t, 1, report.Pool.InUse)
}

// =============================================================================
// HTTP
// =============================================================================

func TestHandler(t *testing.T) {
	healthy := Handler(NewMonitor(0).AddRequired("database", &stubPinger{}))
	critical := Handler(NewMonitor(0).AddRequired("database", &stubPinger{err: errors.New("down")}))

	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	critical.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	critical.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusCritical, report.Components["database"].Status)

	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// gRPC
// =============================================================================

func TestGRPCServer_ReportsMonitorStatus(t *testing.T) {
	db := &stubPinger{}
	srv := NewGRPCServer(NewMonitor(0).AddRequired("database", db), time.Hour)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Sync(ctx)
	go func() { _ = srv.Serve(ctx, lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
		defer callCancel()
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(ServiceName))

	db.fail(errors.New("db down"))
	srv.Sync(ctx)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ServiceName))
}
