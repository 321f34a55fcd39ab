package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeScorer struct {
	input service.ScoreInput
	err   error
	calls int
}

func (f *fakeScorer) Score(_ context.Context, in service.ScoreInput) (*service.ScoreResult, error) {
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.ScoreResult{LeadID: in.LeadID, TenantID: in.TenantID}, nil
}

func TestLeadScoreTaskRoundTrip(t *testing.T) {
	payload := LeadScorePayload{LeadID: uuid.NewString(), TenantID: uuid.NewString(), MessageID: "m-1"}

	task, err := NewLeadScoreTask(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.Type() != TaskLeadScore {
		t.Fatalf("expected task type %s, got %s", TaskLeadScore, task.Type())
	}

	got, err := ParseLeadScorePayload(task)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != payload {
		t.Fatalf("expected %+v, got %+v", payload, got)
	}
}

func TestHandleLeadScoreCallsScorer(t *testing.T) {
	scorer := &fakeScorer{}
	w := &Worker{scorer: scorer, log: logger.Nop()}
	leadID, tenantID := uuid.New(), uuid.New()

	task, _ := NewLeadScoreTask(LeadScorePayload{LeadID: leadID.String(), TenantID: tenantID.String()})
	if err := w.HandleLeadScore(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if scorer.input.LeadID != leadID || scorer.input.TenantID != tenantID {
		t.Fatalf("unexpected scorer input: %+v", scorer.input)
	}
	if scorer.input.Trigger != triggerInboundMessage {
		t.Fatalf("expected default trigger %s, got %s", triggerInboundMessage, scorer.input.Trigger)
	}
}

func TestHandleLeadScoreSkipsRetryOnBadInput(t *testing.T) {
	scorer := &fakeScorer{}
	w := &Worker{scorer: scorer, log: logger.Nop()}

	task, _ := NewLeadScoreTask(LeadScorePayload{LeadID: "nope", TenantID: uuid.NewString()})
	err := w.HandleLeadScore(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if scorer.calls != 0 {
		t.Fatalf("expected scorer not to run, got %d calls", scorer.calls)
	}

	scorer.err = apperr.Validation("lead has no messages to score")
	task, _ = NewLeadScoreTask(LeadScorePayload{LeadID: uuid.NewString(), TenantID: uuid.NewString()})
	err = w.HandleLeadScore(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for validation failure, got %v", err)
	}
}

func TestHandleLeadScoreRetriesOnInternalError(t *testing.T) {
	scorer := &fakeScorer{err: apperr.Internal("store score record failed")}
	w := &Worker{scorer: scorer, log: logger.Nop()}

	task, _ := NewLeadScoreTask(LeadScorePayload{LeadID: uuid.NewString(), TenantID: uuid.NewString()})
	err := w.HandleLeadScore(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

type schedulerConfig struct{ url string }

func (c schedulerConfig) GetRedisURL() string       { return c.url }
func (c schedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c schedulerConfig) GetAsynqQueueName() string { return "" }
func (c schedulerConfig) GetAsynqConcurrency() int  { return 0 }

func TestNewRedisClientDisabledWithoutURL(t *testing.T) {
	client, err := NewRedisClient(schedulerConfig{})
	if err != nil || client != nil {
		t.Fatalf("expected nil client without url, got %v, %v", client, err)
	}
	if queueName(schedulerConfig{}) != "default" {
		t.Fatalf("expected default queue name")
	}
}
