package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/transport"
	"github.com/tbauer79999/rei-crm-sub004/platform/httpkit"
	"github.com/tbauer79999/rei-crm-sub004/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	triggerManual = "manual"
)

// Scorer is the use case surface the handler calls.
type Scorer interface {
	Score(ctx context.Context, in service.ScoreInput) (*service.ScoreResult, error)
	History(ctx context.Context, leadID, tenantID uuid.UUID, limit int) ([]repository.ScoreRecord, error)
}

type Handler struct {
	svc Scorer
}

func New(svc Scorer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/score", h.Score)
	rg.GET("/:id/scores", h.ListScores)
}

func (h *Handler) Score(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ScoreLeadRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		// an empty body means defaults
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	if req.Trigger == "" {
		req.Trigger = triggerManual
	}

	result, err := h.svc.Score(c.Request.Context(), service.ScoreInput{
		LeadID:   id,
		TenantID: tenantID,
		Trigger:  req.Trigger,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToScoreResponse(result))
}

func (h *Handler) ListScores(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var query transport.ScoreHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	records, err := h.svc.History(c.Request.Context(), id, tenantID, query.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToScoreHistoryResponse(records))
}
