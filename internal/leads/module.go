// Package leads wires lead scoring and escalation into the HTTP application.
package leads

import (
	"github.com/tbauer79999/rei-crm-sub004/internal/http"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/escalation"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/handler"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification"
	"github.com/tbauer79999/rei-crm-sub004/internal/settings"
	"github.com/tbauer79999/rei-crm-sub004/platform/config"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the leads bounded context implementing http.Module.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// NewModule builds the scoring pipeline. redisClient may be nil, which turns
// the notification dedupe window off.
func NewModule(pool *pgxpool.Pool, notifications *notification.Module, redisClient redis.Cmdable, cfg config.EscalationConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	opts := []escalation.Option{
		escalation.WithNotificationLog(notifications.Log()),
		escalation.WithPublisher(notifications.SSE()),
	}
	if redisClient != nil {
		if deduper := escalation.NewRedisDeduper(redisClient, cfg.GetEscalationDedupeWindow()); deduper != nil {
			opts = append(opts, escalation.WithDeduper(deduper))
		}
	}
	dispatcher := escalation.NewDispatcher(repo, notifications.Notifier(), cfg, log, opts...)

	svc := service.New(repo, settings.NewRepository(pool), scoring.NewEngine("", nil), dispatcher, log)

	return &Module{
		service: svc,
		handler: handler.New(svc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the scoring use case for the webhook and worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the protected group.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ http.Module = (*Module)(nil)
