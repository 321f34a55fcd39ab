package scheduler

import (
	"context"
	"fmt"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/config"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/hibiken/asynq"
)

const triggerInboundMessage = "inbound_message"

// LeadScorer runs one scoring pass.
type LeadScorer interface {
	Score(ctx context.Context, in service.ScoreInput) (*service.ScoreResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	scorer LeadScorer
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scorer LeadScorer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		scorer: scorer,
		log:    log,
	}

	mux.HandleFunc(TaskLeadScore, w.HandleLeadScore)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// HandleLeadScore scores the lead named in the task. Input problems will not
// fix themselves on retry, so they skip retries.
func (w *Worker) HandleLeadScore(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadScorePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	leadID, tenantID, err := parseLeadScoreIDs(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	trigger := payload.Trigger
	if trigger == "" {
		trigger = triggerInboundMessage
	}

	result, err := w.scorer.Score(ctx, service.ScoreInput{LeadID: leadID, TenantID: tenantID, Trigger: trigger})
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("lead score task dropped", "lead_id", leadID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.Info("lead score task done", "lead_id", leadID, "hot_score", result.Evaluation.HotScore, "status", result.Dispatch.Status)
	return nil
}
