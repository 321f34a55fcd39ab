package notification

import (
	apphttp "github.com/tbauer79999/rei-crm-sub004/internal/http"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/handler"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/inapp"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/sse"
	"github.com/tbauer79999/rei-crm-sub004/platform/config"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration the notification module reads.
type ModuleConfig interface {
	config.SMSConfig
	config.EmailConfig
	config.EscalationConfig
}

// Module owns alert delivery and the dashboard notification log.
type Module struct {
	notifier *Notifier
	inapp    *inapp.Service
	sse      *sse.Service
	handler  *handler.HTTPHandler
}

// New builds the senders that are configured and leaves the rest off.
func New(pool *pgxpool.Pool, cfg ModuleConfig, log *logger.Logger) *Module {
	var sms SMSSender
	if s := NewTwilioSender(cfg, log); s != nil {
		sms = s
	} else {
		log.Warn("twilio not configured; sms alerts disabled")
	}

	var email EmailSender
	if s := NewSMTPSender(cfg); s != nil {
		email = s
	} else {
		log.Warn("smtp not configured; email alerts disabled")
	}

	sseSvc := sse.New(log)
	inappSvc := inapp.NewService(inapp.NewRepository(pool), log)
	inappSvc.SetSSE(sseSvc)

	return &Module{
		notifier: NewNotifier(sms, email, NewSlackSender(), cfg.GetNotifyChannelTimeout(), log),
		inapp:    inappSvc,
		sse:      sseSvc,
		handler:  handler.NewHTTPHandler(inappSvc, sseSvc),
	}
}

func (m *Module) Name() string {
	return "notification"
}

func (m *Module) Notifier() *Notifier {
	return m.notifier
}

func (m *Module) Log() *inapp.Service {
	return m.inapp
}

func (m *Module) SSE() *sse.Service {
	return m.sse
}

// Close disconnects live dashboard streams.
func (m *Module) Close() {
	m.sse.Close()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

var _ apphttp.Module = (*Module)(nil)
