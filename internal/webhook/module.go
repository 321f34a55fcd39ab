package webhook

import (
	apphttp "github.com/tbauer79999/rei-crm-sub004/internal/http"
	"github.com/tbauer79999/rei-crm-sub004/internal/scheduler"
	"github.com/tbauer79999/rei-crm-sub004/platform/config"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"
	"github.com/tbauer79999/rei-crm-sub004/platform/validator"
)

// Module is the inbound-event webhook module implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
}

// NewModule wires the webhook. queue may be nil when Redis is not configured.
func NewModule(cfg config.WebhookConfig, queue scheduler.LeadScoringEnqueuer, scorer LeadScorer, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(queue, scorer, val, log),
		secret:  cfg.GetWebhookSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks")
	group.Use(SharedSecretMiddleware(m.secret))
	group.POST("/inbound-message", m.handler.HandleInboundMessage)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
