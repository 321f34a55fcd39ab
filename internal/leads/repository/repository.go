package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

const (
	opGetLead      = "leads.repository.get_lead"
	opUpdateStatus = "leads.repository.update_status"
	opEscalate     = "leads.repository.escalate"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	Phone                 string
	Name                  string
	Status                domain.LeadStatus
	AIConversationEnabled bool
	LastEscalatedAt       *time.Time
	EscalationReason      *string
	EscalationPriority    *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// EscalationParams is the hand-off metadata written when a lead needs a human.
type EscalationParams struct {
	At       time.Time
	Reason   string
	Priority domain.AlertPriority
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Lead, error) {
	var lead Lead
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, phone, name, status, ai_conversation_enabled,
			last_escalated_at, escalation_reason, escalation_priority, created_at, updated_at
		FROM leads WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(
		&lead.ID, &lead.TenantID, &lead.Phone, &lead.Name, &status, &lead.AIConversationEnabled,
		&lead.LastEscalatedAt, &lead.EscalationReason, &lead.EscalationPriority, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("%s: %w", opGetLead, err)
	}
	lead.Status = domain.LeadStatus(status)
	return lead, nil
}

// UpdateStatus writes the scored status. With disableAI the AI conversation is
// switched off in the same statement; it is never switched back on here.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status domain.LeadStatus, disableAI bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3,
			ai_conversation_enabled = CASE WHEN $4 THEN FALSE ELSE ai_conversation_enabled END,
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, string(status), disableAI)
	if err != nil {
		return fmt.Errorf("%s: %w", opUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Escalate disables the AI conversation and records why and when the lead was handed off.
func (r *Repository) Escalate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, params EscalationParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET ai_conversation_enabled = FALSE,
			last_escalated_at = $3,
			escalation_reason = $4,
			escalation_priority = $5,
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, params.At, params.Reason, string(params.Priority))
	if err != nil {
		return fmt.Errorf("%s: %w", opEscalate, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
