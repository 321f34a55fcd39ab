package inapp

import (
	"context"

	"github.com/tbauer79999/rei-crm-sub004/internal/notification/sse"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error
}

// Publisher pushes live events to connected dashboards.
type Publisher interface {
	PublishToTenant(tenantID uuid.UUID, event sse.Event)
}

type Service struct {
	repo Store
	sse  Publisher
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the live publisher after construction.
func (s *Service) SetSSE(publisher Publisher) {
	s.sse = publisher
}

// Record persists the alert and pushes it to the tenant's open dashboards.
func (s *Service) Record(ctx context.Context, p CreateParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}

	notif, err := s.repo.Create(ctx, p)
	if err != nil {
		s.log.Error("failed to persist notification", "error", err, "leadId", p.LeadID)
		return Notification{}, err
	}

	if s.sse != nil {
		s.sse.PublishToTenant(p.TenantID, sse.Event{
			Type:    sse.EventNotificationCreated,
			LeadID:  p.LeadID,
			Message: notif.Title,
			Data:    notif,
		})
	}

	return notif, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, tenantID, pageSize, offset)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, tenantID, id)
}
