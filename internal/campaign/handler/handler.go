// Package handler exposes the campaign HTTP API.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"caregaps_backend/internal/campaign/domain"
	"caregaps_backend/internal/campaign/service"
	"caregaps_backend/internal/campaign/transport"
	"caregaps_backend/platform/apperr"
	"caregaps_backend/platform/httpkit"
	"caregaps_backend/platform/sanitize"
	"caregaps_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// RunEnqueuer schedules an engine run without blocking the request
type RunEnqueuer interface {
	EnqueueCampaignRun(ctx context.Context, campaign domain.CampaignType) error
}

// Handler serves the campaign API
type Handler struct {
	svc      *service.Service
	enqueuer RunEnqueuer
	validate *validator.Validator
}

// New creates the handler
func New(svc *service.Service, enqueuer RunEnqueuer) *Handler {
	return &Handler{
		svc:      svc,
		enqueuer: enqueuer,
		validate: validator.New(),
	}
}

// Register mounts the campaign routes on the given group
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/opportunities", h.ListOpportunities)
	rg.GET("/opportunities/stats", h.CampaignStats)
	rg.PATCH("/opportunities/status", h.UpdateStatus)
	rg.POST("/runs", h.TriggerRun)
}

// ListOpportunities returns a filtered page of opportunities
func (h *Handler) ListOpportunities(c *gin.Context) {
	var req transport.ListOpportunitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}

	page, err := h.svc.ListOpportunities(c.Request.Context(), req.Filter())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	items := make([]transport.OpportunityResponse, 0, len(page.Items))
	for _, o := range page.Items {
		items = append(items, transport.NewOpportunityResponse(o))
	}

	httpkit.OK(c, transport.ListOpportunitiesResponse{Items: items, Total: page.Total})
}

// CampaignStats returns aggregate counts for a campaign
func (h *Handler) CampaignStats(c *gin.Context) {
	var req transport.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if details := h.validate.Struct(req); details != nil {
		httpkit.HandleError(c, apperr.ValidationWithDetails(msgValidationFailed, details))
		return
	}

	stats, err := h.svc.GetCampaignStats(c.Request.Context(), domain.CampaignType(req.Campaign))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.NewStatsResponse(*stats))
}

// UpdateStatus transitions an opportunity's lifecycle status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if details := h.validate.Struct(req); details != nil {
		httpkit.HandleError(c, apperr.ValidationWithDetails(msgValidationFailed, details))
		return
	}

	updated, err := h.svc.UpdateStatus(c.Request.Context(), req.Key(),
		domain.Status(req.Status), sanitize.Text(req.Message))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.NewOpportunityResponse(*updated))
}

// TriggerRun enqueues an engine run for a campaign
func (h *Handler) TriggerRun(c *gin.Context) {
	var req transport.TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if details := h.validate.Struct(req); details != nil {
		httpkit.HandleError(c, apperr.ValidationWithDetails(msgValidationFailed, details))
		return
	}

	campaign := domain.CampaignType(req.Campaign)
	if !domain.IsKnownCampaign(campaign) {
		httpkit.HandleError(c, apperr.Validation("unknown campaign "+req.Campaign))
		return
	}

	if err := h.enqueuer.EnqueueCampaignRun(c.Request.Context(), campaign); err != nil {
		httpkit.HandleError(c, apperr.Internal("failed to enqueue campaign run", err))
		return
	}

	httpkit.OK(c, transport.TriggerRunResponse{Campaign: req.Campaign, Enqueued: true})
}
