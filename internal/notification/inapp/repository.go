// Package inapp keeps the dashboard log of hot-lead alerts.
package inapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate   = "notification.inapp.repository.create"
	opList     = "notification.inapp.repository.list"
	opMarkRead = "notification.inapp.repository.mark_read"

	errRepoNotConfigured = "in-app notification repository not configured"
	errTenantIDRequired  = "tenantId is required"
)

type Notification struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenantId"`
	LeadID       uuid.UUID `json:"leadId"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Priority     string    `json:"priority"`
	DashboardURL string    `json:"dashboardUrl"`
	Channels     []string  `json:"channels"`
	Failures     []string  `json:"failures"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CreateParams struct {
	TenantID     uuid.UUID
	LeadID       uuid.UUID
	Title        string
	Body         string
	Priority     string
	DashboardURL string
	Channels     []string
	Failures     []string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, tenant_id, lead_id, title, body, priority, dashboard_url, channels, failures, read, created_at`

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.TenantID == uuid.Nil || p.LeadID == uuid.Nil {
		return Notification{}, apperr.Validation("tenantId and leadId are required").WithOp(opCreate)
	}
	if p.Title == "" {
		return Notification{}, apperr.Validation("title is required").WithOp(opCreate)
	}
	if p.Channels == nil {
		p.Channels = []string{}
	}
	if p.Failures == nil {
		p.Failures = []string{}
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications
		(id, tenant_id, lead_id, title, body, priority, dashboard_url, channels, failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+notificationColumns,
		uuid.New(), p.TenantID, p.LeadID, p.Title, p.Body, p.Priority, p.DashboardURL, p.Channels, p.Failures,
	).Scan(scanTargets(&n)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, apperr.Validation("invalid leadId").WithOp(opCreate)
		}
		return Notification{}, apperr.Internal(fmt.Sprintf("create notification failed: %v", err)).WithOp(opCreate)
	}

	return n, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if tenantID == uuid.Nil {
		return nil, 0, apperr.Validation(errTenantIDRequired).WithOp(opList)
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if scanErr := rows.Scan(scanTargets(&n)...); scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if tenantID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("tenantId and notificationId are required").WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND tenant_id = $2
	`, notificationID, tenantID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}

	return nil
}

func scanTargets(n *Notification) []any {
	return []any{&n.ID, &n.TenantID, &n.LeadID, &n.Title, &n.Body, &n.Priority, &n.DashboardURL, &n.Channels, &n.Failures, &n.Read, &n.CreatedAt}
}
