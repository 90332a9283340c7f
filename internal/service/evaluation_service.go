package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/observability"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

const decisionLogWriteTimeout = 5 * time.Second

// EvaluationRequest carries one answer to be coached and logged.
type EvaluationRequest struct {
	UserID        string
	Category      string
	Question      string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
	Explanation   string
}

// Evaluation is the coaching result. LogSaved is false when the decision log
// write failed; the feedback is still valid.
type Evaluation struct {
	Feedback ai.Feedback
	Source   quiz.FeedbackSource
	LogSaved bool
	LogID    string
}

// ReportInvalidator drops cached reports after the decision log changes.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// EvaluationService coaches answers and appends them to the decision log.
// Evaluate never fails: model errors fall back to canned feedback.
type EvaluationService interface {
	Evaluate(ctx context.Context, req EvaluationRequest) Evaluation
}

type evaluationService struct {
	coach   ai.Coach
	logs    repository.DecisionLogRepository
	reports ReportInvalidator
	events  EventPublisher
	logger  zerolog.Logger
}

// NewEvaluationService wires the evaluator. coach may be nil, in which case
// every answer receives fallback feedback.
func NewEvaluationService(coach ai.Coach, logs repository.DecisionLogRepository, reports ReportInvalidator, events EventPublisher, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		coach:   coach,
		logs:    logs,
		reports: reports,
		events:  events,
		logger:  logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req EvaluationRequest) Evaluation {
	input := ai.CoachInput{
		Question:      req.Question,
		UserAnswer:    req.UserAnswer,
		CorrectAnswer: req.CorrectAnswer,
		IsCorrect:     req.IsCorrect,
		Explanation:   req.Explanation,
	}

	feedback, source := s.feedback(ctx, input)
	observability.Evaluations().WithLabelValues(string(source)).Inc()

	result := Evaluation{Feedback: feedback, Source: source}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), decisionLogWriteTimeout)
	defer cancel()

	tone := string(feedback.Tone)
	takeaway := feedback.KeyTakeaway
	entry := models.DecisionLog{
		UserID:        req.UserID,
		CategoryName:  req.Category,
		Question:      req.Question,
		UserAnswer:    req.UserAnswer,
		CorrectAnswer: req.CorrectAnswer,
		IsCorrect:     req.IsCorrect,
		KeyTakeaway:   &takeaway,
		Tone:          &tone,
	}

	if err := s.logs.Create(writeCtx, &entry); err != nil {
		observability.DecisionLogFailures().Inc()
		s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("failed to save decision log")
		return result
	}

	result.LogSaved = true
	result.LogID = entry.ID

	if s.reports != nil {
		s.reports.Invalidate(writeCtx, req.UserID)
	}
	if s.events != nil {
		s.events.Publish(writeCtx, EventDecisionLogged, req.UserID, dto.NewDecisionLogResponse(entry))
	}

	return result
}

func (s *evaluationService) feedback(ctx context.Context, input ai.CoachInput) (ai.Feedback, quiz.FeedbackSource) {
	if s.coach == nil {
		return ai.Fallback(input), quiz.SourceFallback
	}

	feedback, err := s.coach.Coach(ctx, input)
	if err != nil {
		s.logger.Warn().Err(err).Msg("coach unavailable, using fallback feedback")
		return ai.Fallback(input), quiz.SourceFallback
	}

	return feedback, quiz.SourceModel
}
