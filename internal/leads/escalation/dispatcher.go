// Package escalation applies a scoring outcome to the lead: status, score
// snapshot, human hand-off and alerting.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/inapp"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/sse"
	"github.com/tbauer79999/rei-crm-sub004/internal/settings"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"
	"github.com/tbauer79999/rei-crm-sub004/platform/sanitize"

	"github.com/google/uuid"
)

const (
	opDispatch = "leads.escalation.dispatch"

	// notifyBudget bounds the whole fan-out and the dashboard log write once the
	// durable steps are done, independent of the caller's deadline.
	notifyBudget = 30 * time.Second
)

// Notifier fans an alert out to the external channels.
type Notifier interface {
	Notify(ctx context.Context, r notification.Recipients, p notification.Payload) notification.Report
}

// NotificationLog persists the dashboard copy of an alert.
type NotificationLog interface {
	Record(ctx context.Context, p inapp.CreateParams) (inapp.Notification, error)
}

// Deduper decides whether a lead may be alerted again now. Release gives the
// slot back when nothing was delivered.
type Deduper interface {
	Claim(ctx context.Context, tenantID, leadID uuid.UUID) (bool, error)
	Release(ctx context.Context, tenantID, leadID uuid.UUID) error
}

// EventPublisher pushes live updates to dashboards.
type EventPublisher interface {
	PublishToTenant(tenantID uuid.UUID, event sse.Event)
}

// Store is the lead persistence the dispatcher writes to.
type Store interface {
	repository.LeadWriter
	repository.ScoreWriter
}

// DispatchInput is one scoring outcome to apply.
type DispatchInput struct {
	Lead       repository.Lead
	Evaluation scoring.Evaluation
	Settings   settings.TenantSettings
	Now        time.Time
}

// NotificationOutcome describes what happened to the alert for this pass.
type NotificationOutcome struct {
	Attempted      bool                 `json:"attempted"`
	Deduplicated   bool                 `json:"deduplicated"`
	Report         *notification.Report `json:"report,omitempty"`
	NotificationID *uuid.UUID           `json:"notificationId,omitempty"`
}

// DispatchResult is what the dispatcher changed.
type DispatchResult struct {
	Status         domain.LeadStatus      `json:"status"`
	AIDisabled     bool                   `json:"aiDisabled"`
	Record         repository.ScoreRecord `json:"-"`
	Escalated      bool                   `json:"escalated"`
	EscalationNote string                 `json:"escalationReason,omitempty"`
	Notification   NotificationOutcome    `json:"notification"`
}

type Config interface {
	GetAppBaseURL() string
}

// Dispatcher runs the side effects of a scoring pass. Status and snapshot
// writes must succeed; alert delivery never fails the call.
type Dispatcher struct {
	store     Store
	notifier  Notifier
	notifLog  NotificationLog
	deduper   Deduper
	publisher EventPublisher
	baseURL   string
	log       *logger.Logger
}

type Option func(*Dispatcher)

func WithDeduper(d Deduper) Option {
	return func(disp *Dispatcher) {
		if d != nil {
			disp.deduper = d
		}
	}
}

func WithNotificationLog(l NotificationLog) Option {
	return func(disp *Dispatcher) { disp.notifLog = l }
}

func WithPublisher(p EventPublisher) Option {
	return func(disp *Dispatcher) { disp.publisher = p }
}

func NewDispatcher(store Store, notifier Notifier, cfg Config, log *logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		baseURL:  strings.TrimRight(cfg.GetAppBaseURL(), "/"),
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch applies the outcome in order: status, snapshot, escalation, alert.
// Only the status and snapshot writes can fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (DispatchResult, error) {
	lead := in.Lead
	eval := in.Evaluation
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	status := domain.StatusForScore(eval.HotScore, in.Settings.Threshold())
	disableAI := status == domain.LeadStatusHot
	result := DispatchResult{Status: status, AIDisabled: disableAI}

	if err := d.store.UpdateStatus(ctx, lead.ID, lead.TenantID, status, disableAI); err != nil {
		return result, d.fatal(err, "update lead status failed")
	}

	rec, err := d.store.InsertScore(ctx, repository.NewScoreRecord(lead.ID, lead.TenantID, eval))
	if err != nil {
		d.log.Error("score snapshot not stored after status update",
			"lead_id", lead.ID, "tenant_id", lead.TenantID, "status", status, "hot_score", eval.HotScore, "error", err)
		return result, d.fatal(err, "store score record failed")
	}
	result.Record = rec
	d.publish(lead, sse.EventLeadScored, "lead scored", rec)

	if !eval.RequiresImmediateAttention {
		return result, nil
	}

	reason := escalationReason(eval)
	err = d.store.Escalate(ctx, lead.ID, lead.TenantID, repository.EscalationParams{
		At:       now,
		Reason:   reason,
		Priority: eval.AlertPriority,
	})
	result.EscalationNote = reason
	if err != nil {
		// snapshot is already stored; alert regardless
		d.log.Error("escalation not recorded after score snapshot, alerting anyway",
			"lead_id", lead.ID, "tenant_id", lead.TenantID, "score_id", rec.ID, "error", err)
	} else {
		result.Escalated = true
		result.AIDisabled = true
		d.publish(lead, sse.EventLeadEscalated, reason, rec)
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyBudget)
	defer cancel()
	result.Notification = d.alert(notifyCtx, in, reason)

	return result, nil
}

func (d *Dispatcher) alert(ctx context.Context, in DispatchInput, reason string) NotificationOutcome {
	lead := in.Lead
	outcome := NotificationOutcome{}

	holdsSlot := false
	if d.deduper != nil {
		claimed, err := d.deduper.Claim(ctx, lead.TenantID, lead.ID)
		if err != nil {
			d.log.Warn("notification dedupe unavailable, sending anyway", "lead_id", lead.ID, "error", err)
		}
		holdsSlot = claimed && err == nil
		if !claimed {
			d.log.Info("notification skipped inside dedupe window", "lead_id", lead.ID)
			outcome.Deduplicated = true
			return outcome
		}
	}

	payload := d.payload(in, reason)
	outcome.Attempted = true
	if d.notifier != nil {
		report := d.notifier.Notify(ctx, in.Settings.Recipients(), payload)
		outcome.Report = &report
	}
	if holdsSlot && (outcome.Report == nil || len(outcome.Report.Delivered) == 0) {
		if err := d.deduper.Release(ctx, lead.TenantID, lead.ID); err != nil {
			d.log.Warn("notification dedupe slot not released", "lead_id", lead.ID, "error", err)
		}
	}

	if d.notifLog == nil {
		return outcome
	}

	params := inapp.CreateParams{
		TenantID:     lead.TenantID,
		LeadID:       lead.ID,
		Title:        payload.Title,
		Body:         payload.Body,
		Priority:     payload.Priority,
		DashboardURL: payload.DashboardURL,
	}
	if outcome.Report != nil {
		params.Channels = notification.ChannelNames(outcome.Report.Delivered)
		for ch, msg := range outcome.Report.Failed {
			params.Failures = append(params.Failures, fmt.Sprintf("%s: %s", ch, msg))
		}
	}
	notif, err := d.notifLog.Record(ctx, params)
	if err != nil {
		d.log.Warn("dashboard notification not stored", "lead_id", lead.ID, "error", err)
		return outcome
	}
	outcome.NotificationID = &notif.ID
	return outcome
}

func (d *Dispatcher) payload(in DispatchInput, reason string) notification.Payload {
	lead := in.Lead
	eval := in.Evaluation

	who := sanitize.AlertText(lead.Name)
	if who == "" {
		who = lead.Phone
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\nHot score %d, stage %s", reason, eval.HotScore, eval.Stage)
	if len(eval.Triggers) > 0 {
		names := make([]string, 0, len(eval.Triggers))
		for _, t := range eval.Triggers {
			names = append(names, string(t))
		}
		fmt.Fprintf(&body, "\nTriggers: %s", strings.Join(names, ", "))
	}

	return notification.Payload{
		TenantID:     lead.TenantID,
		LeadID:       lead.ID,
		Title:        fmt.Sprintf("Hot lead: %s", who),
		Body:         sanitize.AlertText(body.String()),
		Priority:     string(eval.AlertPriority),
		DashboardURL: fmt.Sprintf("%s/leads/%s", d.baseURL, lead.ID),
	}
}

func (d *Dispatcher) publish(lead repository.Lead, eventType sse.EventType, message string, rec repository.ScoreRecord) {
	if d.publisher == nil {
		return
	}
	d.publisher.PublishToTenant(lead.TenantID, sse.Event{
		Type:    eventType,
		LeadID:  lead.ID,
		Message: message,
		Data: map[string]any{
			"scoreId":     rec.ID,
			"hotScore":    rec.HotScore,
			"funnelStage": rec.FunnelStage,
			"priority":    rec.AlertPriority,
		},
	})
}

func (d *Dispatcher) fatal(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found").WithOp(opDispatch)
	}
	return apperr.Wrap(apperr.KindInternal, message, err).WithOp(opDispatch)
}

// escalationReason prefers the stage override, then the first attention trigger.
func escalationReason(eval scoring.Evaluation) string {
	if eval.StageOverrideReason != "" {
		return eval.StageOverrideReason
	}
	for _, t := range eval.Triggers {
		if t.RequiresAttention() {
			return fmt.Sprintf("%s: %s", t, eval.AlertDetails[t])
		}
	}
	return "requires immediate attention"
}
