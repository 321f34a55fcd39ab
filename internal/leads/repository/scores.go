package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"

	"github.com/google/uuid"
)

const (
	opInsertScore = "leads.repository.insert_score"
	opListScores  = "leads.repository.list_scores"
)

// ScoreRecord is one immutable snapshot of a scoring pass.
type ScoreRecord struct {
	ID                         uuid.UUID
	LeadID                     uuid.UUID
	TenantID                   uuid.UUID
	HotScore                   int
	FunnelStage                domain.FunnelStage
	Breakdown                  scoring.Breakdown
	CriticalScore              float64
	Features                   scoring.Features
	RequiresImmediateAttention bool
	AlertPriority              domain.AlertPriority
	AlertTriggers              []domain.Trigger
	AlertDetails               map[domain.Trigger]string
	StageOverrideReason        string
	ComputedBy                 string
	CreatedAt                  time.Time
}

// NewScoreRecord snapshots an evaluation for the given lead.
func NewScoreRecord(leadID, tenantID uuid.UUID, eval scoring.Evaluation) ScoreRecord {
	return ScoreRecord{
		ID:                         uuid.New(),
		LeadID:                     leadID,
		TenantID:                   tenantID,
		HotScore:                   eval.HotScore,
		FunnelStage:                eval.Stage,
		Breakdown:                  eval.Breakdown,
		CriticalScore:              eval.CriticalScore,
		Features:                   eval.Features,
		RequiresImmediateAttention: eval.RequiresImmediateAttention,
		AlertPriority:              eval.AlertPriority,
		AlertTriggers:              eval.Triggers,
		AlertDetails:               eval.AlertDetails,
		StageOverrideReason:        eval.StageOverrideReason,
		ComputedBy:                 eval.ComputedBy,
	}
}

// InsertScore appends a score record. Records are never updated or deleted.
func (r *Repository) InsertScore(ctx context.Context, rec ScoreRecord) (ScoreRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	features, err := json.Marshal(rec.Features)
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("%s: marshal features: %w", opInsertScore, err)
	}
	details, err := json.Marshal(rec.AlertDetails)
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("%s: marshal alert details: %w", opInsertScore, err)
	}

	b := rec.Breakdown
	err = r.pool.QueryRow(ctx, `
		INSERT INTO lead_scores (
			id, lead_id, tenant_id, hot_score, funnel_stage,
			behavioral_score, emotional_score, intent_score, sentiment_quality_score,
			conversation_quality_score, ai_intelligence_score, recency_score, critical_score,
			features, requires_immediate_attention, alert_priority, alert_triggers, alert_details,
			stage_override_reason, computed_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at
	`,
		rec.ID, rec.LeadID, rec.TenantID, rec.HotScore, string(rec.FunnelStage),
		b.Behavioral, b.Emotional, b.Intent, b.SentimentQuality,
		b.ConversationQuality, b.AIIntelligence, b.Recency, rec.CriticalScore,
		features, rec.RequiresImmediateAttention, string(rec.AlertPriority), triggerStrings(rec.AlertTriggers), details,
		rec.StageOverrideReason, rec.ComputedBy,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("%s: %w", opInsertScore, err)
	}

	return rec, nil
}

// ListScores returns the newest score records of a lead first.
func (r *Repository) ListScores(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID, limit int) ([]ScoreRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, tenant_id, hot_score, funnel_stage,
			behavioral_score, emotional_score, intent_score, sentiment_quality_score,
			conversation_quality_score, ai_intelligence_score, recency_score, critical_score,
			features, requires_immediate_attention, alert_priority, alert_triggers, alert_details,
			stage_override_reason, computed_by, created_at
		FROM lead_scores
		WHERE lead_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, leadID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opListScores, err)
	}
	defer rows.Close()

	records := make([]ScoreRecord, 0)
	for rows.Next() {
		var rec ScoreRecord
		var stage, priority string
		var triggers []string
		var features, details []byte
		b := &rec.Breakdown
		if err := rows.Scan(
			&rec.ID, &rec.LeadID, &rec.TenantID, &rec.HotScore, &stage,
			&b.Behavioral, &b.Emotional, &b.Intent, &b.SentimentQuality,
			&b.ConversationQuality, &b.AIIntelligence, &b.Recency, &rec.CriticalScore,
			&features, &rec.RequiresImmediateAttention, &priority, &triggers, &details,
			&rec.StageOverrideReason, &rec.ComputedBy, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", opListScores, err)
		}
		if err := json.Unmarshal(features, &rec.Features); err != nil {
			return nil, fmt.Errorf("%s: decode features: %w", opListScores, err)
		}
		if err := json.Unmarshal(details, &rec.AlertDetails); err != nil {
			return nil, fmt.Errorf("%s: decode alert details: %w", opListScores, err)
		}
		rec.FunnelStage = domain.FunnelStage(stage)
		rec.AlertPriority = domain.AlertPriority(priority)
		rec.AlertTriggers = make([]domain.Trigger, 0, len(triggers))
		for _, trigger := range triggers {
			rec.AlertTriggers = append(rec.AlertTriggers, domain.Trigger(trigger))
		}
		records = append(records, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", opListScores, rows.Err())
	}

	return records, nil
}

func triggerStrings(triggers []domain.Trigger) []string {
	out := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		out = append(out, string(trigger))
	}
	return out
}
