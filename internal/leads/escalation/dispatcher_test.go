package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/inapp"
	"github.com/tbauer79999/rei-crm-sub004/internal/notification/sse"
	"github.com/tbauer79999/rei-crm-sub004/internal/settings"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCall struct {
	status    domain.LeadStatus
	disableAI bool
}

type fakeStore struct {
	mu          sync.Mutex
	calls       []string
	statuses    []statusCall
	records     []repository.ScoreRecord
	escalations []repository.EscalationParams
	statusErr   error
	insertErr   error
	escalateErr error
}

func (f *fakeStore) UpdateStatus(_ context.Context, _, _ uuid.UUID, status domain.LeadStatus, disableAI bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "status")
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses = append(f.statuses, statusCall{status: status, disableAI: disableAI})
	return nil
}

func (f *fakeStore) Escalate(_ context.Context, _, _ uuid.UUID, params repository.EscalationParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "escalate")
	if f.escalateErr != nil {
		return f.escalateErr
	}
	f.escalations = append(f.escalations, params)
	return nil
}

func (f *fakeStore) InsertScore(_ context.Context, rec repository.ScoreRecord) (repository.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	if f.insertErr != nil {
		return repository.ScoreRecord{}, f.insertErr
	}
	rec.CreatedAt = time.Now()
	f.records = append(f.records, rec)
	return rec, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []notification.Payload
	report   notification.Report
}

func (f *fakeNotifier) Notify(_ context.Context, _ notification.Recipients, p notification.Payload) notification.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return f.report
}

type fakeLog struct {
	params []inapp.CreateParams
	err    error
}

func (f *fakeLog) Record(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	if f.err != nil {
		return inapp.Notification{}, f.err
	}
	f.params = append(f.params, p)
	return inapp.Notification{ID: uuid.New(), TenantID: p.TenantID, LeadID: p.LeadID, Title: p.Title}, nil
}

type fakePublisher struct {
	events []sse.EventType
}

func (f *fakePublisher) PublishToTenant(_ uuid.UUID, event sse.Event) {
	f.events = append(f.events, event.Type)
}

type baseURL string

func (b baseURL) GetAppBaseURL() string { return string(b) }

func testLead() repository.Lead {
	return repository.Lead{
		ID:                    uuid.New(),
		TenantID:              uuid.New(),
		Phone:                 "+14155552671",
		Name:                  "Jane Seller",
		Status:                domain.LeadStatusCold,
		AIConversationEnabled: true,
	}
}

func quietEvaluation(score int) scoring.Evaluation {
	return scoring.Evaluation{
		HotScore: score,
		Classification: scoring.Classification{
			Stage:        scoring.StageForScore(score, 0),
			Triggers:     []domain.Trigger{},
			AlertDetails: map[domain.Trigger]string{},
		},
		ComputedBy: "test",
	}
}

func callbackEvaluation() scoring.Evaluation {
	eval := quietEvaluation(82)
	eval.GatePassed = true
	eval.Stage = domain.FunnelStageHot
	eval.Triggers = []domain.Trigger{domain.TriggerCallbackRequest}
	eval.AlertDetails = map[domain.Trigger]string{domain.TriggerCallbackRequest: `"call me" in: call me tonight`}
	eval.AlertPriority = domain.AlertPriorityHigh
	eval.RequiresImmediateAttention = true
	eval.StageOverrideReason = `callback requested: "call me" in: call me tonight`
	return eval
}

func deliveredReport() notification.Report {
	return notification.Report{
		Attempted: []notification.Channel{notification.ChannelEmail},
		Delivered: []notification.Channel{notification.ChannelEmail},
		Failed:    map[notification.Channel]string{},
	}
}

func notifySettings(tenantID uuid.UUID) settings.TenantSettings {
	s := settings.DefaultTenantSettings(tenantID)
	s.NotifyPhone = "+14155552671"
	s.NotifyEmail = "agent@example.com"
	return s
}

func TestDispatchThresholdOverridesDefault(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store, &fakeNotifier{}, baseURL("https://app.example.com"), nil)
	lead := testLead()

	s := settings.DefaultTenantSettings(lead.TenantID)
	s.HotLeadThreshold = 50

	result, err := d.Dispatch(context.Background(), DispatchInput{Lead: lead, Evaluation: quietEvaluation(55), Settings: s})
	require.NoError(t, err)

	assert.Equal(t, domain.LeadStatusHot, result.Status)
	assert.True(t, result.AIDisabled)
	require.Len(t, store.statuses, 1)
	assert.Equal(t, statusCall{status: domain.LeadStatusHot, disableAI: true}, store.statuses[0])
}

func TestDispatchDefaultThresholdKeepsAIOn(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store, &fakeNotifier{}, baseURL(""), nil)
	lead := testLead()

	result, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: quietEvaluation(65),
		Settings:   settings.DefaultTenantSettings(lead.TenantID),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeadStatusEngaged, result.Status)
	assert.False(t, result.AIDisabled)
	assert.False(t, result.Escalated)
	assert.Equal(t, []string{"status", "insert"}, store.calls)
	assert.False(t, result.Notification.Attempted)
}

func TestDispatchEscalatesAndNotifies(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{report: notification.Report{
		Attempted: []notification.Channel{notification.ChannelSMS, notification.ChannelEmail},
		Delivered: []notification.Channel{notification.ChannelEmail},
		Failed:    map[notification.Channel]string{notification.ChannelSMS: "twilio down"},
	}}
	log := &fakeLog{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, notifier, baseURL("https://app.example.com/"), nil,
		WithNotificationLog(log), WithPublisher(pub))
	lead := testLead()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	result, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: callbackEvaluation(),
		Settings:   notifySettings(lead.TenantID),
		Now:        now,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"status", "insert", "escalate"}, store.calls)
	assert.True(t, result.Escalated)
	assert.True(t, result.AIDisabled)

	require.Len(t, store.escalations, 1)
	assert.Equal(t, now, store.escalations[0].At)
	assert.Equal(t, domain.AlertPriorityHigh, store.escalations[0].Priority)
	assert.Contains(t, store.escalations[0].Reason, "callback requested")

	require.Len(t, notifier.payloads, 1)
	p := notifier.payloads[0]
	assert.Equal(t, "Hot lead: Jane Seller", p.Title)
	assert.Equal(t, "high", p.Priority)
	assert.Equal(t, "https://app.example.com/leads/"+lead.ID.String(), p.DashboardURL)
	assert.Equal(t, lead.ID, p.LeadID)

	require.Len(t, log.params, 1)
	assert.Equal(t, []string{"email"}, log.params[0].Channels)
	assert.Equal(t, []string{"sms: twilio down"}, log.params[0].Failures)
	require.NotNil(t, result.Notification.NotificationID)

	assert.Equal(t, []sse.EventType{sse.EventLeadScored, sse.EventLeadEscalated}, pub.events)
}

func TestDispatchScoreInsertFailureIsFatal(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection reset")}
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier, baseURL(""), nil)
	lead := testLead()

	_, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: callbackEvaluation(),
		Settings:   notifySettings(lead.TenantID),
	})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, []string{"status", "insert"}, store.calls)
	assert.Empty(t, notifier.payloads)
}

func TestDispatchEscalationWriteFailureStillAlerts(t *testing.T) {
	store := &fakeStore{escalateErr: errors.New("db blip")}
	notifier := &fakeNotifier{report: deliveredReport()}
	pub := &fakePublisher{}
	d := NewDispatcher(store, notifier, baseURL(""), nil, WithPublisher(pub))
	lead := testLead()

	result, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: callbackEvaluation(),
		Settings:   notifySettings(lead.TenantID),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"status", "insert", "escalate"}, store.calls)
	assert.Len(t, store.records, 1)
	assert.Len(t, notifier.payloads, 1)
	assert.False(t, result.Escalated)
	assert.NotEmpty(t, result.EscalationNote)
	assert.True(t, result.Notification.Attempted)
	assert.Equal(t, []sse.EventType{sse.EventLeadScored}, pub.events)
}

func TestDispatchMissingLeadIsNotFound(t *testing.T) {
	store := &fakeStore{statusErr: repository.ErrNotFound}
	d := NewDispatcher(store, &fakeNotifier{}, baseURL(""), nil)

	_, err := d.Dispatch(context.Background(), DispatchInput{Lead: testLead(), Evaluation: quietEvaluation(30)})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, []string{"status"}, store.calls)
}

func TestDispatchNotificationLogFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store, &fakeNotifier{}, baseURL(""), nil,
		WithNotificationLog(&fakeLog{err: errors.New("db down")}))
	lead := testLead()

	result, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: callbackEvaluation(),
		Settings:   notifySettings(lead.TenantID),
	})

	require.NoError(t, err)
	assert.True(t, result.Notification.Attempted)
	assert.Nil(t, result.Notification.NotificationID)
}

func TestDispatchDedupeWindowSkipsSecondAlert(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store := &fakeStore{}
	notifier := &fakeNotifier{report: deliveredReport()}
	d := NewDispatcher(store, notifier, baseURL(""), nil,
		WithDeduper(NewRedisDeduper(client, time.Minute)))
	lead := testLead()
	in := DispatchInput{Lead: lead, Evaluation: callbackEvaluation(), Settings: notifySettings(lead.TenantID)}

	first, err := d.Dispatch(context.Background(), in)
	require.NoError(t, err)
	second, err := d.Dispatch(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, first.Notification.Attempted)
	assert.True(t, second.Notification.Deduplicated)
	assert.False(t, second.Notification.Attempted)
	assert.Len(t, notifier.payloads, 1)

	// both passes still persist a snapshot and a status update
	assert.Len(t, store.records, 2)
	assert.Len(t, store.statuses, 2)

	mr.FastForward(2 * time.Minute)
	third, err := d.Dispatch(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, third.Notification.Attempted)
	assert.Len(t, notifier.payloads, 2)
}

func TestDispatchReleasesDedupeSlotWhenNothingDelivered(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	notifier := &fakeNotifier{report: notification.Report{
		Attempted: []notification.Channel{notification.ChannelSMS},
		Failed:    map[notification.Channel]string{notification.ChannelSMS: "twilio down"},
	}}
	d := NewDispatcher(&fakeStore{}, notifier, baseURL(""), nil,
		WithDeduper(NewRedisDeduper(client, time.Minute)))
	lead := testLead()
	in := DispatchInput{Lead: lead, Evaluation: callbackEvaluation(), Settings: notifySettings(lead.TenantID)}

	_, err := d.Dispatch(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())

	notifier.report = deliveredReport()
	retry, err := d.Dispatch(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, retry.Notification.Attempted)
	assert.False(t, retry.Notification.Deduplicated)
	assert.Len(t, notifier.payloads, 2)
	assert.Len(t, mr.Keys(), 1)
}

func TestDispatchDedupeFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()
	mr.Close()

	notifier := &fakeNotifier{}
	d := NewDispatcher(&fakeStore{}, notifier, baseURL(""), nil,
		WithDeduper(NewRedisDeduper(client, time.Minute)))
	lead := testLead()

	result, err := d.Dispatch(context.Background(), DispatchInput{
		Lead:       lead,
		Evaluation: callbackEvaluation(),
		Settings:   notifySettings(lead.TenantID),
	})

	require.NoError(t, err)
	assert.True(t, result.Notification.Attempted)
	assert.Len(t, notifier.payloads, 1)
}

func TestEscalationReasonFallsBackToFirstAttentionTrigger(t *testing.T) {
	eval := quietEvaluation(40)
	eval.Triggers = []domain.Trigger{domain.TriggerTimelineMention, domain.TriggerPricingInquiry}
	eval.AlertDetails = map[domain.Trigger]string{
		domain.TriggerTimelineMention: "month",
		domain.TriggerPricingInquiry:  `"how much" in: how much?`,
	}

	assert.Equal(t, `pricing_inquiry: "how much" in: how much?`, escalationReason(eval))
}

func TestNewRedisDeduperDisabled(t *testing.T) {
	assert.Nil(t, NewRedisDeduper(nil, time.Minute))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	assert.Nil(t, NewRedisDeduper(client, 0))

	var d *RedisDeduper
	ok, err := d.Claim(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, d.Release(context.Background(), uuid.New(), uuid.New()))
}
