// Package transport holds the JSON shapes of the leads scoring API.
package transport

import (
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/escalation"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"

	"github.com/google/uuid"
)

// ScoreLeadRequest is the optional body of POST /leads/:id/score.
type ScoreLeadRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,oneof=manual inbound_message scheduled"`
}

// ScoreHistoryQuery binds GET /leads/:id/scores.
type ScoreHistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

// InboundMessageEvent is posted by the messaging layer after storing an inbound SMS.
type InboundMessageEvent struct {
	LeadID    uuid.UUID  `json:"leadId" validate:"required"`
	TenantID  uuid.UUID  `json:"tenantId" validate:"required"`
	MessageID *uuid.UUID `json:"messageId,omitempty"`
}

type SubScores struct {
	Behavioral          float64 `json:"behavioral"`
	Emotional           float64 `json:"emotional"`
	Intent              float64 `json:"intent"`
	SentimentQuality    float64 `json:"sentimentQuality"`
	ConversationQuality float64 `json:"conversationQuality"`
	AIIntelligence      float64 `json:"aiIntelligence"`
	Recency             float64 `json:"recency"`
}

type ScoreResponse struct {
	LeadID                     uuid.UUID                      `json:"leadId"`
	ScoreID                    uuid.UUID                      `json:"scoreId"`
	HotScore                   int                            `json:"hotScore"`
	FunnelStage                domain.FunnelStage             `json:"funnelStage"`
	SubScores                  SubScores                      `json:"subScores"`
	CriticalScore              float64                        `json:"criticalScore"`
	GatePassed                 bool                           `json:"gatePassed"`
	RequiresImmediateAttention bool                           `json:"requiresImmediateAttention"`
	AlertPriority              domain.AlertPriority           `json:"alertPriority,omitempty"`
	AlertTriggers              []domain.Trigger               `json:"alertTriggers"`
	AlertDetails               map[domain.Trigger]string      `json:"alertDetails"`
	StageOverrideReason        string                         `json:"stageOverrideReason,omitempty"`
	Features                   scoring.Features               `json:"features"`
	LeadStatus                 domain.LeadStatus              `json:"leadStatus"`
	AIConversationEnabled      bool                           `json:"aiConversationEnabled"`
	Escalated                  bool                           `json:"escalated"`
	EscalationReason           string                         `json:"escalationReason,omitempty"`
	Notification               escalation.NotificationOutcome `json:"notification"`
	ComputedBy                 string                         `json:"computedBy"`
	ScoredAt                   time.Time                      `json:"scoredAt"`
}

type ScoreRecordResponse struct {
	ID                         uuid.UUID                 `json:"id"`
	HotScore                   int                       `json:"hotScore"`
	FunnelStage                domain.FunnelStage        `json:"funnelStage"`
	SubScores                  SubScores                 `json:"subScores"`
	CriticalScore              float64                   `json:"criticalScore"`
	RequiresImmediateAttention bool                      `json:"requiresImmediateAttention"`
	AlertPriority              domain.AlertPriority      `json:"alertPriority,omitempty"`
	AlertTriggers              []domain.Trigger          `json:"alertTriggers"`
	AlertDetails               map[domain.Trigger]string `json:"alertDetails"`
	StageOverrideReason        string                    `json:"stageOverrideReason,omitempty"`
	ComputedBy                 string                    `json:"computedBy"`
	CreatedAt                  time.Time                 `json:"createdAt"`
}

type ScoreHistoryResponse struct {
	Items []ScoreRecordResponse `json:"items"`
}

func toSubScores(b scoring.Breakdown) SubScores {
	return SubScores{
		Behavioral:          b.Behavioral,
		Emotional:           b.Emotional,
		Intent:              b.Intent,
		SentimentQuality:    b.SentimentQuality,
		ConversationQuality: b.ConversationQuality,
		AIIntelligence:      b.AIIntelligence,
		Recency:             b.Recency,
	}
}

// ToScoreResponse flattens a scoring pass into the API payload.
func ToScoreResponse(r *service.ScoreResult) ScoreResponse {
	eval := r.Evaluation
	return ScoreResponse{
		LeadID:                     r.LeadID,
		ScoreID:                    r.Dispatch.Record.ID,
		HotScore:                   eval.HotScore,
		FunnelStage:                eval.Stage,
		SubScores:                  toSubScores(eval.Breakdown),
		CriticalScore:              eval.CriticalScore,
		GatePassed:                 eval.GatePassed,
		RequiresImmediateAttention: eval.RequiresImmediateAttention,
		AlertPriority:              eval.AlertPriority,
		AlertTriggers:              eval.Triggers,
		AlertDetails:               eval.AlertDetails,
		StageOverrideReason:        eval.StageOverrideReason,
		Features:                   eval.Features,
		LeadStatus:                 r.Dispatch.Status,
		AIConversationEnabled:      !r.Dispatch.AIDisabled,
		Escalated:                  r.Dispatch.Escalated,
		EscalationReason:           r.Dispatch.EscalationNote,
		Notification:               r.Dispatch.Notification,
		ComputedBy:                 eval.ComputedBy,
		ScoredAt:                   r.ScoredAt,
	}
}

// ToScoreHistoryResponse converts stored records, newest first.
func ToScoreHistoryResponse(records []repository.ScoreRecord) ScoreHistoryResponse {
	items := make([]ScoreRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, ScoreRecordResponse{
			ID:                         rec.ID,
			HotScore:                   rec.HotScore,
			FunnelStage:                rec.FunnelStage,
			SubScores:                  toSubScores(rec.Breakdown),
			CriticalScore:              rec.CriticalScore,
			RequiresImmediateAttention: rec.RequiresImmediateAttention,
			AlertPriority:              rec.AlertPriority,
			AlertTriggers:              rec.AlertTriggers,
			AlertDetails:               rec.AlertDetails,
			StageOverrideReason:        rec.StageOverrideReason,
			ComputedBy:                 rec.ComputedBy,
			CreatedAt:                  rec.CreatedAt,
		})
	}
	return ScoreHistoryResponse{Items: items}
}
