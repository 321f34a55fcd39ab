package repository

import (
	"context"
	"fmt"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"

	"github.com/google/uuid"
)

const opListMessages = "leads.repository.list_messages"

// ListMessages returns the full conversation of a lead, oldest first.
func (r *Repository) ListMessages(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, tenant_id, direction, body, sent_at,
			hesitation_score, urgency_score, sentiment_score, sentiment_magnitude,
			qualification_score, response_score, weighted_score
		FROM messages
		WHERE lead_id = $1 AND tenant_id = $2
		ORDER BY sent_at ASC, id ASC
	`, leadID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opListMessages, err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var direction string
		if err := rows.Scan(
			&msg.ID,
			&msg.LeadID,
			&msg.TenantID,
			&direction,
			&msg.Body,
			&msg.SentAt,
			&msg.AI.Hesitation,
			&msg.AI.Urgency,
			&msg.AI.Sentiment,
			&msg.AI.SentimentMagnitude,
			&msg.AI.Qualification,
			&msg.AI.Response,
			&msg.AI.Weighted,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", opListMessages, err)
		}
		msg.Direction = domain.Direction(direction)
		messages = append(messages, msg)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", opListMessages, rows.Err())
	}

	return messages, nil
}
