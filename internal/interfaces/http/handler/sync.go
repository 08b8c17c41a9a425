package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

// SyncHandler handles manual sync triggers and job monitoring
type SyncHandler struct {
	BaseHandler
	scheduler *scheduler.SyncScheduler
	// lookback bounds order pulls when the request carries no window.
	lookback time.Duration
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncScheduler *scheduler.SyncScheduler, lookback time.Duration) *SyncHandler {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &SyncHandler{
		scheduler: syncScheduler,
		lookback:  lookback,
	}
}

// TriggerSyncRequest optionally narrows the sync window
type TriggerSyncRequest struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// TriggerSyncResponse acknowledges a queued sync
type TriggerSyncResponse struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Since    string `json:"since"`
	Until    string `json:"until"`
}

// SyncSummaryResponse is the pipeline outcome embedded in a job
type SyncSummaryResponse struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SyncJobResponse represents one sync job in the history listing
type SyncJobResponse struct {
	ID          string               `json:"id"`
	Provider    string               `json:"provider"`
	Kind        string               `json:"kind"`
	Since       *string              `json:"since,omitempty"`
	Until       string               `json:"until"`
	Status      string               `json:"status"`
	Error       string               `json:"error,omitempty"`
	StartedAt   *string              `json:"started_at,omitempty"`
	CompletedAt *string              `json:"completed_at,omitempty"`
	RetryCount  int                  `json:"retry_count"`
	Summary     *SyncSummaryResponse `json:"summary,omitempty"`
}

// TriggerSync queues a sync job for one provider and data kind
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}
	kind, ok := parseSyncKind(c.Param("kind"))
	if !ok {
		h.BadRequest(c, "unknown sync kind, expected one of: products, orders, offers, stock")
		return
	}

	now := time.Now()
	since := now.Add(-h.lookback)
	until := now

	var req TriggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
		if req.Since != "" {
			parsed, err := time.Parse(time.RFC3339, req.Since)
			if err != nil {
				h.BadRequest(c, "since must be RFC3339")
				return
			}
			since = parsed
		}
		if req.Until != "" {
			parsed, err := time.Parse(time.RFC3339, req.Until)
			if err != nil {
				h.BadRequest(c, "until must be RFC3339")
				return
			}
			until = parsed
		}
	}
	if since.After(until) {
		h.BadRequest(c, "since must not be after until")
		return
	}

	if err := h.scheduler.ScheduleSync(provider, kind, since, until); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobQueueFull):
			h.ErrorWithCode(c, dto.ErrCodeQueueFull, err.Error())
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.ErrorWithCode(c, dto.ErrCodeUpstreamUnavailable, err.Error())
		default:
			h.InternalError(c, "failed to queue sync job")
		}
		return
	}

	h.Accepted(c, TriggerSyncResponse{
		Provider: provider.String(),
		Kind:     string(kind),
		Since:    since.Format(time.RFC3339),
		Until:    until.Format(time.RFC3339),
	})
}

// ListJobs returns recent sync jobs, newest first
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	jobs := h.scheduler.GetJobHistory(limit)
	out := make([]SyncJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toSyncJobResponse(job))
	}
	h.Success(c, out)
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/:provider/:kind", h.TriggerSync)
		sync.GET("/jobs", h.ListJobs)
	}
}

func (h *SyncHandler) parseProvider(c *gin.Context) (catalog.ProviderCode, bool) {
	provider := catalog.ProviderCode(strings.ToUpper(c.Param("provider")))
	if !provider.IsValid() {
		h.NotFound(c, "unknown provider")
		return "", false
	}
	return provider, true
}

func parseSyncKind(raw string) (scheduler.SyncJobKind, bool) {
	switch strings.ToUpper(raw) {
	case string(scheduler.SyncJobKindProducts):
		return scheduler.SyncJobKindProducts, true
	case string(scheduler.SyncJobKindOrders):
		return scheduler.SyncJobKindOrders, true
	case string(scheduler.SyncJobKindOffers):
		return scheduler.SyncJobKindOffers, true
	case string(scheduler.SyncJobKindStock):
		return scheduler.SyncJobKindStock, true
	default:
		return "", false
	}
}

func toSyncJobResponse(job *scheduler.SyncJob) SyncJobResponse {
	resp := SyncJobResponse{
		ID:         job.ID.String(),
		Provider:   job.Provider.String(),
		Kind:       string(job.Kind),
		Until:      job.Until.Format(time.RFC3339),
		Status:     string(job.Status),
		Error:      job.Error,
		RetryCount: job.RetryCount,
	}
	if !job.Since.IsZero() {
		since := job.Since.Format(time.RFC3339)
		resp.Since = &since
	}
	if job.StartedAt != nil {
		started := job.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	if job.Summary != nil {
		resp.Summary = &SyncSummaryResponse{
			Inserted: job.Summary.Inserted,
			Updated:  job.Summary.Updated,
			Skipped:  job.Summary.Skipped,
			Failed:   job.Summary.FailedCount(),
		}
	}
	return resp
}
