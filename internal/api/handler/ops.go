// Package handler provides HTTP handlers for the route search API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/routedesk/routedesk/internal/api/models"
	"github.com/routedesk/routedesk/internal/api/response"
	"github.com/routedesk/routedesk/internal/provider/resilience"
)

// readyTimeout bounds the dependency checks of the readiness probe.
const readyTimeout = 2 * time.Second

// UpstreamReporter reports the circuit health of outbound clients.
type UpstreamReporter interface {
	Snapshot() []resilience.UpstreamHealth
}

// QueueReporter reports the number of queued render jobs.
type QueueReporter interface {
	QueueDepth() int
}

// SessionReporter reports retained and active sessions.
type SessionReporter interface {
	Len() int
	Active() int
}

// PoolReporter reports search pool utilisation.
type PoolReporter interface {
	Busy() int
	Workers() int
}

// Pinger checks a backing store. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsDeps are the subsystems the ops endpoints inspect. Nil fields are
// left out of the report.
type OpsDeps struct {
	Upstreams UpstreamReporter
	Render    QueueReporter
	Sessions  SessionReporter
	Search    PoolReporter
	Database  Pinger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	deps      OpsDeps
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, deps OpsDeps) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		deps:      deps,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Only the catalog database gates readiness; an open engine circuit is
// reported by /status but does not take the instance out of rotation.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if err := h.pingDatabase(r.Context()); err != nil {
		msg := err.Error()
		health.Status = models.HealthStatusFail
		health.Database = &msg
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
// A failed subsystem fails the whole report; an unhealthy upstream only
// degrades it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystems(r.Context()),
		Upstreams:  []models.UpstreamStatus{},
	}

	for _, sub := range status.Subsystems {
		status.Status = status.Status.Worse(sub.Status)
	}

	if h.deps.Upstreams != nil {
		for _, u := range h.deps.Upstreams.Snapshot() {
			up := toUpstreamStatus(u)
			status.Upstreams = append(status.Upstreams, up)
			if up.Status != models.HealthStatusOK {
				status.Status = status.Status.Worse(models.HealthStatusDegraded)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingDatabase(ctx context.Context) error {
	if h.deps.Database == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return h.deps.Database.Ping(ctx)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	subs := []models.SubsystemStatus{}

	if h.deps.Database != nil {
		sub := models.SubsystemStatus{Name: "catalog-db", Status: models.HealthStatusOK}
		if err := h.pingDatabase(ctx); err != nil {
			msg := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &msg
		}
		subs = append(subs, sub)
	}

	if h.deps.Search != nil {
		busy, workers := h.deps.Search.Busy(), h.deps.Search.Workers()
		sub := models.SubsystemStatus{
			Name:    "search-pool",
			Status:  models.HealthStatusOK,
			Metrics: map[string]int{"busy": busy, "workers": workers},
		}
		if workers > 0 && busy >= workers {
			sub.Status = models.HealthStatusDegraded
		}
		subs = append(subs, sub)
	}

	if h.deps.Render != nil {
		subs = append(subs, models.SubsystemStatus{
			Name:    "render-queue",
			Status:  models.HealthStatusOK,
			Metrics: map[string]int{"depth": h.deps.Render.QueueDepth()},
		})
	}

	if h.deps.Sessions != nil {
		subs = append(subs, models.SubsystemStatus{
			Name:   "sessions",
			Status: models.HealthStatusOK,
			Metrics: map[string]int{
				"active":   h.deps.Sessions.Active(),
				"retained": h.deps.Sessions.Len(),
			},
		})
	}

	return subs
}

func toUpstreamStatus(u resilience.UpstreamHealth) models.UpstreamStatus {
	out := models.UpstreamStatus{
		Name:          u.Name,
		Status:        models.HealthStatusFail,
		CircuitState:  u.CircuitState.String(),
		Requests:      u.Counts.Requests,
		Failures:      u.Counts.ConsecutiveFailures,
		LastSuccessAt: models.TimestampPtr(u.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(u.LastFailureAt),
	}
	switch u.Status() {
	case resilience.StatusHealthy:
		out.Status = models.HealthStatusOK
	case resilience.StatusDegraded:
		out.Status = models.HealthStatusDegraded
	}
	if u.LastError != "" {
		msg := u.LastError
		out.Message = &msg
	}
	return out
}
