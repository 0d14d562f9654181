package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubCloser struct {
	report   *services.CycleReport
	err      error
	calls    []time.Time
	ctxErr   error
	deadline time.Time
}

func (s *stubCloser) RunOnce(ctx context.Context, now time.Time) (*services.CycleReport, error) {
	s.calls = append(s.calls, now)
	s.ctxErr = ctx.Err()
	s.deadline, _ = ctx.Deadline()
	return s.report, s.err
}

type stubReconciler struct {
	report *services.ReconcileReport
}

func (s *stubReconciler) Reconcile(context.Context, time.Time) (*services.ReconcileReport, error) {
	return s.report, nil
}

type leaderMock struct {
	mock.Mock
}

func (m *leaderMock) BecomeLeader(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *leaderMock) IsLeader(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *leaderMock) ReleaseLeadership(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newServer(h *AdminHandler) *echo.Echo {
	h.now = func() time.Time { return fixedNow }
	e := echo.New()
	h.Register(e)
	return e
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAdminHandler_RunClosures(t *testing.T) {
	closer := &stubCloser{report: &services.CycleReport{
		StartedAt: fixedNow,
		Scanned:   2,
		Outcomes:  map[domain.OutcomeKind]int{domain.OutcomeWon: 1, domain.OutcomeNoBids: 1},
	}}
	e := newServer(NewAdminHandler(closer, nil, nil, "closer-1", prometheus.NewRegistry(), logger.NewNop()))

	rec := serve(e, http.MethodPost, "/api/v1/closures/run")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []time.Time{fixedNow}, closer.calls)

	var body services.CycleReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Scanned)
	assert.Equal(t, 1, body.Outcomes[domain.OutcomeWon])
}

func TestAdminHandler_RunClosuresScanFailure(t *testing.T) {
	closer := &stubCloser{err: errors.New("db down")}
	e := newServer(NewAdminHandler(closer, nil, nil, "closer-1", prometheus.NewRegistry(), logger.NewNop()))

	rec := serve(e, http.MethodPost, "/api/v1/closures/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestAdminHandler_RunClosuresOutlivesRequest(t *testing.T) {
	closer := &stubCloser{report: &services.CycleReport{Outcomes: map[domain.OutcomeKind]int{}}}
	h := NewAdminHandler(closer, nil, nil, "closer-1", prometheus.NewRegistry(), logger.NewNop())
	h.SetRunTimeout(time.Minute)
	e := newServer(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/closures/run", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	before := time.Now()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, closer.ctxErr)
	assert.WithinDuration(t, before.Add(time.Minute), closer.deadline, 5*time.Second)
}

func TestAdminHandler_RunReconciliation(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		rc := &stubReconciler{report: &services.ReconcileReport{Repaired: 3, Found: map[string]int{}}}
		e := newServer(NewAdminHandler(&stubCloser{}, rc, nil, "closer-1", prometheus.NewRegistry(), logger.NewNop()))

		rec := serve(e, http.MethodPost, "/api/v1/reconciliations/run")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"repaired":3`)
	})

	t.Run("disabled", func(t *testing.T) {
		e := newServer(NewAdminHandler(&stubCloser{}, nil, nil, "closer-1", prometheus.NewRegistry(), logger.NewNop()))
		rec := serve(e, http.MethodPost, "/api/v1/reconciliations/run")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestAdminHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		isLeader   bool
		err        error
		wantStatus string
		wantLeader bool
	}{
		{name: "leader", isLeader: true, wantStatus: "ok", wantLeader: true},
		{name: "follower", isLeader: false, wantStatus: "ok", wantLeader: false},
		{name: "election unavailable", err: errors.New("redis down"), wantStatus: "degraded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			le := &leaderMock{}
			le.On("IsLeader", mock.Anything, "closer-1").Return(tc.isLeader, tc.err)
			e := newServer(NewAdminHandler(&stubCloser{}, nil, le, "closer-1", prometheus.NewRegistry(), logger.NewNop()))

			rec := serve(e, http.MethodGet, "/health")
			require.Equal(t, http.StatusOK, rec.Code)

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, tc.wantLeader, body.Leader)
			assert.Equal(t, "closer-1", body.InstanceID)
			le.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "auction_closer_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	e := newServer(NewAdminHandler(&stubCloser{}, nil, nil, "closer-1", reg, logger.NewNop()))
	rec := serve(e, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "auction_closer_test_total 1"))
}
