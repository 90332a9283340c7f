package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/observability"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
)

var (
	// ErrInvalidMode indicates an unknown session mode.
	ErrInvalidMode = errors.New("invalid session mode")
	// ErrTimeExpired indicates the countdown committed a timeout before the answer arrived.
	ErrTimeExpired = fmt.Errorf("%w: time expired", quiz.ErrAlreadyAnswered)
)

// Warnings surfaced when a durable write fails but the request succeeded.
const (
	WarningDecisionLogNotSaved = "decision log could not be saved"
	WarningProgressNotSaved    = "progress could not be saved"
)

// QuizConfig tunes quiz sessions.
type QuizConfig struct {
	QuestionSeconds int
}

// QuizService drives quiz sessions on behalf of their owners.
type QuizService interface {
	Start(ctx context.Context, userID string, req dto.StartSessionRequest) (dto.SessionResponse, error)
	Get(ctx context.Context, userID, sessionID string) (dto.SessionResponse, error)
	Answer(ctx context.Context, userID, sessionID string, req dto.AnswerRequest) (dto.AnswerResponse, error)
	Advance(ctx context.Context, userID, sessionID string) (dto.AdvanceResponse, error)
	Abandon(ctx context.Context, userID, sessionID string) error
	// Tick catches a session up with the wall clock regardless of owner. It
	// is driven by the countdown worker.
	Tick(ctx context.Context, sessionID string) error
	ActiveSessionIDs(ctx context.Context) ([]string, error)
}

type quizService struct {
	store      repository.QuizSessionStore
	catalog    *catalog.Catalog
	evaluator  EvaluationService
	progress   ProgressService
	events     EventPublisher
	validator  *validator.Validate
	config     QuizConfig
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	generateID func() string
}

// NewQuizService wires the quiz session orchestration.
func NewQuizService(store repository.QuizSessionStore, scenarios *catalog.Catalog, evaluator EvaluationService, progress ProgressService, events EventPublisher, validate *validator.Validate, cfg QuizConfig, logger zerolog.Logger) QuizService {
	if cfg.QuestionSeconds <= 0 {
		cfg.QuestionSeconds = quiz.DefaultQuestionSeconds
	}
	return &quizService{
		store:      store,
		catalog:    scenarios,
		evaluator:  evaluator,
		progress:   progress,
		events:     events,
		validator:  validate,
		config:     cfg,
		logger:     logger.With().Str("component", "quiz_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/crisiscoach-go-api/internal/service/quiz"),
		now:        time.Now,
		generateID: uuid.NewString,
	}
}

func (s *quizService) Start(ctx context.Context, userID string, req dto.StartSessionRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	mode, ok := quiz.ParseMode(req.Mode)
	if !ok {
		return dto.SessionResponse{}, ErrInvalidMode
	}

	category, err := s.catalog.Get(req.CategoryID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	session := quiz.Start(s.generateID(), userID, category, mode, s.config.QuestionSeconds, s.now())
	if err := s.store.Create(ctx, session); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("create session: %w", err)
	}

	observability.SessionsStarted().WithLabelValues(string(mode)).Inc()
	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", session.ID).
		Str("category_id", category.ID).
		Str("mode", string(mode)).
		Msg("quiz session started")

	return dto.NewSessionResponse(session, category), nil
}

func (s *quizService) Get(ctx context.Context, userID, sessionID string) (dto.SessionResponse, error) {
	session, err := s.sync(ctx, sessionID, userID)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return s.render(session)
}

func (s *quizService) Answer(ctx context.Context, userID, sessionID string, req dto.AnswerRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnswerResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "quiz.answer", trace.WithAttributes(
		attribute.String("quiz.session_id", sessionID),
		attribute.Int("quiz.option_index", *req.OptionIndex),
	))
	defer span.End()

	now := s.now()
	var (
		outcome quiz.Outcome
		expired bool
	)
	session, err := s.store.Update(spanCtx, sessionID, func(session *quiz.Session) error {
		expired = false
		if err := ownedBy(session, userID); err != nil {
			return err
		}
		if session.CatchUp(now) {
			expired = true
			return nil
		}

		scenario, err := s.catalog.Scenario(session.CategoryID, session.CurrentIndex)
		if err != nil {
			return err
		}
		outcome, err = session.Submit(scenario, *req.OptionIndex, now)
		return err
	})
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	if expired {
		observability.QuestionTimeouts().Inc()
		if _, _, err := s.resolvePending(spanCtx, session); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to resolve timed-out question")
		}
		return dto.AnswerResponse{}, ErrTimeExpired
	}

	session, evaluation, err := s.resolvePending(spanCtx, session)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}

	category, err := s.catalog.Get(session.CategoryID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	resolved, ok := session.LastOutcome()
	if !ok || resolved.QuestionIndex != outcome.QuestionIndex {
		resolved = outcome
	}

	response := dto.AnswerResponse{
		Outcome: dto.NewOutcomeView(session, category, resolved),
		Session: dto.NewSessionResponse(session, category),
	}
	if !evaluation.LogSaved {
		response.Warnings = append(response.Warnings, WarningDecisionLogNotSaved)
	}

	return response, nil
}

func (s *quizService) Advance(ctx context.Context, userID, sessionID string) (dto.AdvanceResponse, error) {
	if _, err := s.sync(ctx, sessionID, userID); err != nil {
		return dto.AdvanceResponse{}, err
	}

	now := s.now()
	var completed bool
	session, err := s.store.Update(ctx, sessionID, func(session *quiz.Session) error {
		completed = false
		if err := ownedBy(session, userID); err != nil {
			return err
		}
		done, err := session.Advance(now)
		completed = done
		return err
	})
	if err != nil {
		return dto.AdvanceResponse{}, err
	}

	category, err := s.catalog.Get(session.CategoryID)
	if err != nil {
		return dto.AdvanceResponse{}, err
	}

	response := dto.AdvanceResponse{
		Completed: completed,
		Session:   dto.NewSessionResponse(session, category),
	}
	if !completed {
		return response, nil
	}

	summary := dto.SessionSummary{
		PointsEarned:   session.RunningScore,
		CorrectCount:   session.CorrectCount,
		TotalQuestions: session.TotalQuestions(),
		Perfect:        session.Perfect(),
	}
	if summary.Perfect {
		summary.Medal = category.MedalName()
	}
	response.Summary = &summary

	result := "completed"
	if summary.Perfect {
		result = "perfect"
	}
	observability.SessionsFinished().WithLabelValues(result).Inc()

	writeCtx := context.WithoutCancel(ctx)
	progress, err := s.progress.FinalizeSession(writeCtx, userID, session.CategoryID, session)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("session_id", sessionID).Msg("failed to merge session into progress")
		response.Warnings = append(response.Warnings, WarningProgressNotSaved)
	} else {
		view := dto.NewProgressResponse(progress)
		response.Progress = &view
		response.ProgressSaved = true
	}

	if s.events != nil {
		s.events.Publish(writeCtx, EventSessionCompleted, userID, response)
	}

	if err := s.store.Delete(writeCtx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to drop completed session")
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Int("score", summary.PointsEarned).
		Bool("perfect", summary.Perfect).
		Msg("quiz session completed")

	return response, nil
}

func (s *quizService) Abandon(ctx context.Context, userID, sessionID string) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := ownedBy(session, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}

	observability.SessionsFinished().WithLabelValues("abandoned").Inc()
	s.logger.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("quiz session abandoned")
	return nil
}

func (s *quizService) Tick(ctx context.Context, sessionID string) error {
	_, err := s.sync(ctx, sessionID, "")
	if errors.Is(err, repository.ErrQuizSessionNotFound) {
		return s.store.Delete(ctx, sessionID)
	}
	return err
}

func (s *quizService) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	return s.store.ActiveIDs(ctx)
}

// sync catches the session up with the wall clock. The caller that commits a
// timeout is responsible for evaluating it. An empty userID skips the owner check.
func (s *quizService) sync(ctx context.Context, sessionID, userID string) (*quiz.Session, error) {
	now := s.now()
	var expired bool
	session, err := s.store.Update(ctx, sessionID, func(session *quiz.Session) error {
		expired = false
		if userID != "" {
			if err := ownedBy(session, userID); err != nil {
				return err
			}
		}
		lastTick := session.LastTickAt
		expired = session.CatchUp(now)
		if !expired && session.LastTickAt.Equal(lastTick) {
			return repository.ErrQuizSessionUnchanged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !expired {
		return session, nil
	}

	observability.QuestionTimeouts().Inc()
	session, _, err = s.resolvePending(ctx, session)
	return session, err
}

// resolvePending evaluates the outcome awaiting feedback and attaches the
// result. The model call happens outside any store update.
func (s *quizService) resolvePending(ctx context.Context, session *quiz.Session) (*quiz.Session, Evaluation, error) {
	outcome, ok := session.PendingOutcome()
	if !ok {
		return session, Evaluation{LogSaved: true}, nil
	}

	category, err := s.catalog.Get(session.CategoryID)
	if err != nil {
		return nil, Evaluation{}, err
	}
	scenario, err := s.catalog.Scenario(session.CategoryID, outcome.QuestionIndex)
	if err != nil {
		return nil, Evaluation{}, err
	}

	userAnswer := quiz.TimedOutAnswerText
	if !outcome.TimedOut() {
		userAnswer = scenario.Options[outcome.ChosenOption]
	}

	evaluation := s.evaluator.Evaluate(ctx, EvaluationRequest{
		UserID:        session.UserID,
		Category:      category.Name,
		Question:      scenario.Question,
		UserAnswer:    userAnswer,
		CorrectAnswer: scenario.CorrectAnswer(),
		IsCorrect:     outcome.IsCorrect,
		Explanation:   scenario.Explanation,
	})

	updated, err := s.store.Update(context.WithoutCancel(ctx), session.ID, func(current *quiz.Session) error {
		pending, ok := current.PendingOutcome()
		if !ok || pending.QuestionIndex != outcome.QuestionIndex {
			return quiz.ErrNoPendingFeedback
		}
		return current.ResolveFeedback(evaluation.Feedback, evaluation.Source)
	})
	if err != nil {
		return nil, evaluation, fmt.Errorf("resolve feedback: %w", err)
	}

	return updated, evaluation, nil
}

func (s *quizService) render(session *quiz.Session) (dto.SessionResponse, error) {
	category, err := s.catalog.Get(session.CategoryID)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return dto.NewSessionResponse(session, category), nil
}

func ownedBy(session *quiz.Session, userID string) error {
	if session.UserID != userID {
		return repository.ErrQuizSessionNotFound
	}
	return nil
}
