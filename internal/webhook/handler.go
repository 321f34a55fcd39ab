// Package webhook receives inbound-message events and turns each into a
// scoring pass for the lead.
package webhook

import (
	"context"
	"net/http"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/transport"
	"github.com/tbauer79999/rei-crm-sub004/internal/scheduler"
	"github.com/tbauer79999/rei-crm-sub004/platform/httpkit"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"
	"github.com/tbauer79999/rei-crm-sub004/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"

	triggerInboundMessage = "inbound_message"
)

// LeadScorer runs a scoring pass synchronously.
type LeadScorer interface {
	Score(ctx context.Context, in service.ScoreInput) (*service.ScoreResult, error)
}

// Handler handles webhook HTTP requests.
type Handler struct {
	queue  scheduler.LeadScoringEnqueuer
	scorer LeadScorer
	val    *validator.Validator
	log    *logger.Logger
}

// NewHandler creates a webhook handler. With a nil queue every event is
// scored inside the request.
func NewHandler(queue scheduler.LeadScoringEnqueuer, scorer LeadScorer, val *validator.Validator, log *logger.Logger) *Handler {
	if val == nil {
		val = validator.Validate
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{queue: queue, scorer: scorer, val: val, log: log}
}

// HandleInboundMessage queues or runs a scoring pass for the event's lead.
// POST /api/v1/webhooks/inbound-message
func (h *Handler) HandleInboundMessage(c *gin.Context) {
	var event transport.InboundMessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.FieldErrors(err))
		return
	}

	if h.queue != nil {
		payload := scheduler.LeadScorePayload{
			LeadID:   event.LeadID.String(),
			TenantID: event.TenantID.String(),
			Trigger:  triggerInboundMessage,
		}
		if event.MessageID != nil {
			payload.MessageID = event.MessageID.String()
		}
		if err := h.queue.EnqueueLeadScoring(c.Request.Context(), payload); err != nil {
			h.log.Error("failed to enqueue lead scoring", "lead_id", event.LeadID, "error", err)
			httpkit.Error(c, http.StatusServiceUnavailable, "scoring queue unavailable", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued", "leadId": event.LeadID})
		return
	}

	result, err := h.scorer.Score(c.Request.Context(), service.ScoreInput{
		LeadID:   event.LeadID,
		TenantID: event.TenantID,
		Trigger:  triggerInboundMessage,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToScoreResponse(result))
}
