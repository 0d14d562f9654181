package handlers

import (
	"context"
	"net/http"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ClosingRunner interface {
	RunOnce(ctx context.Context, now time.Time) (*services.CycleReport, error)
}

type ReconcileRunner interface {
	Reconcile(ctx context.Context, now time.Time) (*services.ReconcileReport, error)
}

type AdminHandler struct {
	closer         ClosingRunner
	reconciler     ReconcileRunner // nil when reconciliation is disabled
	leaderElection domain.LeaderElection
	instanceID     string
	gatherer       prometheus.Gatherer
	runTimeout     time.Duration
	now            func() time.Time
	log            logger.Logger
}

const defaultRunTimeout = 5 * time.Minute

type HealthResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Leader     bool   `json:"leader"`
	LeaderErr  string `json:"leader_error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAdminHandler(closer ClosingRunner, reconciler ReconcileRunner, leaderElection domain.LeaderElection,
	instanceID string, gatherer prometheus.Gatherer, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		closer:         closer,
		reconciler:     reconciler,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		gatherer:       gatherer,
		runTimeout:     defaultRunTimeout,
		now:            time.Now,
		log:            log,
	}
}

// SetRunTimeout bounds manually triggered cycles.
func (h *AdminHandler) SetRunTimeout(d time.Duration) {
	if d > 0 {
		h.runTimeout = d
	}
}

// runContext detaches a manual run from the request so a client that hangs
// up does not abort closures midway.
func (h *AdminHandler) runContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.runTimeout)
}

func (h *AdminHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	api.POST("/closures/run", h.RunClosures)
	api.POST("/reconciliations/run", h.RunReconciliation)
}

// RunClosures runs one closing cycle immediately. It is not leader gated;
// concurrent cycles are safe because every closure is claimed first.
func (h *AdminHandler) RunClosures(c echo.Context) error {
	ctx, cancel := h.runContext(c)
	defer cancel()

	report, err := h.closer.RunOnce(ctx, h.now())
	if err != nil {
		h.log.Error("Manual closing cycle failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	h.log.Info("Manual closing cycle finished", "scanned", report.Scanned, "failed", report.Failed)
	return c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) RunReconciliation(c echo.Context) error {
	if h.reconciler == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "reconciliation is disabled"})
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	report, err := h.reconciler.Reconcile(ctx, h.now())
	if err != nil {
		h.log.Error("Manual reconciliation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	h.log.Info("Manual reconciliation finished", "repaired", report.Repaired, "failed", report.Failed)
	return c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) Health(c echo.Context) error {
	resp := HealthResponse{Status: "ok", InstanceID: h.instanceID, Leader: true}

	if h.leaderElection != nil {
		leader, err := h.leaderElection.IsLeader(c.Request().Context(), h.instanceID)
		resp.Leader = leader
		if err != nil {
			resp.Status = "degraded"
			resp.LeaderErr = err.Error()
		}
	}
	return c.JSON(http.StatusOK, resp)
}
