// Package settings reads per-tenant scoring and alerting preferences.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opGet = "settings.repository.get"

// TenantSettings are the knobs a tenant controls for hot-lead handling.
type TenantSettings struct {
	TenantID               uuid.UUID               `json:"tenantId"`
	HotLeadThreshold       int                     `json:"hotLeadThreshold"`
	NotificationPreference notification.Preference `json:"notificationPreference"`
	NotifyPhone            string                  `json:"notifyPhone"`
	NotifyEmail            string                  `json:"notifyEmail"`
	SlackWebhookURL        string                  `json:"slackWebhookUrl"`
}

// DefaultTenantSettings is used for tenants without a settings row.
func DefaultTenantSettings(tenantID uuid.UUID) TenantSettings {
	return TenantSettings{
		TenantID:               tenantID,
		HotLeadThreshold:       domain.DefaultHotLeadThreshold,
		NotificationPreference: notification.PreferenceAll,
	}
}

// Threshold returns the configured threshold, falling back to the default when out of range.
func (s TenantSettings) Threshold() int {
	return domain.EffectiveThreshold(s.HotLeadThreshold)
}

// Recipients converts the settings into alert contacts.
func (s TenantSettings) Recipients() notification.Recipients {
	return notification.Recipients{
		Preference:      s.NotificationPreference,
		Phone:           strings.TrimSpace(s.NotifyPhone),
		Email:           strings.TrimSpace(s.NotifyEmail),
		SlackWebhookURL: strings.TrimSpace(s.SlackWebhookURL),
	}
}

// Reader loads tenant settings.
type Reader interface {
	Get(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the tenant's settings, or the defaults when none are stored.
func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error) {
	if tenantID == uuid.Nil {
		return TenantSettings{}, apperr.Validation("tenantId is required").WithOp(opGet)
	}

	s := TenantSettings{TenantID: tenantID}
	var preference string
	err := r.pool.QueryRow(ctx, `
		SELECT hot_lead_threshold, notification_preference, notify_phone, notify_email, slack_webhook_url
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&s.HotLeadThreshold, &preference, &s.NotifyPhone, &s.NotifyEmail, &s.SlackWebhookURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultTenantSettings(tenantID), nil
	}
	if err != nil {
		return TenantSettings{}, apperr.Internal(fmt.Sprintf("load tenant settings failed: %v", err)).WithOp(opGet)
	}

	s.NotificationPreference = notification.ParsePreference(preference)
	return s, nil
}

var _ Reader = (*Repository)(nil)
