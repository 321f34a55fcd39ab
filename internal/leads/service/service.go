// Package service runs a scoring pass for a lead end to end.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/escalation"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/settings"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/google/uuid"
)

const (
	opScore   = "leads.service.score"
	opHistory = "leads.service.history"

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Repository is the read side the scoring use case needs.
type Repository interface {
	repository.LeadReader
	repository.MessageReader
	repository.ScoreReader
}

// Evaluator scores a conversation.
type Evaluator interface {
	Evaluate(messages []domain.Message, now time.Time) scoring.Evaluation
}

// Dispatcher applies a scoring outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, in escalation.DispatchInput) (escalation.DispatchResult, error)
}

// ScoreInput identifies the lead to score and what prompted it.
type ScoreInput struct {
	LeadID   uuid.UUID
	TenantID uuid.UUID
	// Trigger is informational, e.g. "inbound_message" or "manual".
	Trigger string
}

// ScoreResult is the full payload returned to callers.
type ScoreResult struct {
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	Trigger    string
	Evaluation scoring.Evaluation
	Dispatch   escalation.DispatchResult
	ScoredAt   time.Time
}

type Service struct {
	repo       Repository
	settings   settings.Reader
	engine     Evaluator
	dispatcher Dispatcher
	now        func() time.Time
	log        *logger.Logger
}

type Option func(*Service)

// WithClock replaces the wall clock used for recency and escalation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo Repository, settingsReader settings.Reader, engine Evaluator, dispatcher Dispatcher, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:       repo,
		settings:   settingsReader,
		engine:     engine,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score loads the lead's conversation, evaluates it and applies the outcome.
// Input problems are reported before any side effect happens.
func (s *Service) Score(ctx context.Context, in ScoreInput) (*ScoreResult, error) {
	if in.LeadID == uuid.Nil {
		return nil, apperr.Validation("leadId is required").WithOp(opScore)
	}
	if in.TenantID == uuid.Nil {
		return nil, apperr.Validation("tenantId is required").WithOp(opScore)
	}

	lead, err := s.repo.GetByID(ctx, in.LeadID, in.TenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("lead not found").WithOp(opScore)
	}
	if err != nil {
		s.log.DatabaseError(opScore, err)
		return nil, apperr.Wrap(apperr.KindInternal, "load lead failed", err).WithOp(opScore)
	}

	messages, err := s.repo.ListMessages(ctx, in.LeadID, in.TenantID)
	if err != nil {
		s.log.DatabaseError(opScore, err)
		return nil, apperr.Wrap(apperr.KindInternal, "load messages failed", err).WithOp(opScore)
	}
	if len(messages) == 0 {
		return nil, apperr.Validation("lead has no messages to score").WithOp(opScore)
	}

	tenantSettings, err := s.settings.Get(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	eval := s.engine.Evaluate(messages, now)
	s.log.LeadScored(in.LeadID.String(), eval.HotScore, string(eval.Stage), eval.Breakdown.Components())

	dispatched, err := s.dispatcher.Dispatch(ctx, escalation.DispatchInput{
		Lead:       lead,
		Evaluation: eval,
		Settings:   tenantSettings,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	return &ScoreResult{
		LeadID:     in.LeadID,
		TenantID:   in.TenantID,
		Trigger:    in.Trigger,
		Evaluation: eval,
		Dispatch:   dispatched,
		ScoredAt:   now,
	}, nil
}

// History lists the most recent score records for a lead, newest first.
func (s *Service) History(ctx context.Context, leadID, tenantID uuid.UUID, limit int) ([]repository.ScoreRecord, error) {
	if leadID == uuid.Nil || tenantID == uuid.Nil {
		return nil, apperr.Validation("leadId and tenantId are required").WithOp(opHistory)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if _, err := s.repo.GetByID(ctx, leadID, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found").WithOp(opHistory)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load lead failed", err).WithOp(opHistory)
	}

	records, err := s.repo.ListScores(ctx, leadID, tenantID, limit)
	if err != nil {
		s.log.DatabaseError(opHistory, err)
		return nil, apperr.Wrap(apperr.KindInternal, "list score records failed", err).WithOp(opHistory)
	}
	return records, nil
}
