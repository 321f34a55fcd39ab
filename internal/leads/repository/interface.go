package repository

import (
	"context"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (Lead, error)
}

// LeadWriter applies the scoring outcome to a lead.
type LeadWriter interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status domain.LeadStatus, disableAI bool) error
	Escalate(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, params EscalationParams) error
}

// MessageReader provides the conversation history of a lead.
type MessageReader interface {
	ListMessages(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID) ([]domain.Message, error)
}

// ScoreWriter appends score snapshots.
type ScoreWriter interface {
	InsertScore(ctx context.Context, rec ScoreRecord) (ScoreRecord, error)
}

// ScoreReader lists stored score snapshots.
type ScoreReader interface {
	ListScores(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID, limit int) ([]ScoreRecord, error)
}

// LeadsRepository is the full persistence surface of the scoring module.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	MessageReader
	ScoreWriter
	ScoreReader
}

// Compile-time check that Repository implements LeadsRepository
var _ LeadsRepository = (*Repository)(nil)
