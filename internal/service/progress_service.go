package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/observability"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
)

const maxProgressAttempts = 3

var (
	// ErrProgressConflict indicates concurrent writers kept winning the version race.
	ErrProgressConflict = errors.New("progress update conflicted")
	// ErrSessionNotFinished indicates a session was finalized before completion.
	ErrSessionNotFinished = errors.New("session not completed")
	// ErrSessionMismatch indicates a session does not belong to the user or category.
	ErrSessionMismatch = errors.New("session does not match user or category")
)

// ProgressService merges completed sessions into durable user progress.
type ProgressService interface {
	Get(ctx context.Context, userID string) (models.UserProgress, error)
	FinalizeSession(ctx context.Context, userID, categoryID string, session *quiz.Session) (models.UserProgress, error)
}

type progressService struct {
	repo    repository.UserProgressRepository
	catalog *catalog.Catalog
	logger  zerolog.Logger
}

// NewProgressService constructs the progress aggregator.
func NewProgressService(repo repository.UserProgressRepository, scenarios *catalog.Catalog, logger zerolog.Logger) ProgressService {
	return &progressService{
		repo:    repo,
		catalog: scenarios,
		logger:  logger.With().Str("component", "progress_service").Logger(),
	}
}

func (s *progressService) Get(ctx context.Context, userID string) (models.UserProgress, error) {
	progress, _, err := s.load(ctx, userID)
	return progress, err
}

func (s *progressService) load(ctx context.Context, userID string) (models.UserProgress, bool, error) {
	progress, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewUserProgress(userID), false, nil
		}
		return models.UserProgress{}, false, err
	}
	return progress, true, nil
}

func (s *progressService) FinalizeSession(ctx context.Context, userID, categoryID string, session *quiz.Session) (models.UserProgress, error) {
	if session == nil || !session.Completed() {
		return models.UserProgress{}, ErrSessionNotFinished
	}
	if session.UserID != userID || session.CategoryID != categoryID {
		return models.UserProgress{}, ErrSessionMismatch
	}

	category, err := s.catalog.Get(categoryID)
	if err != nil {
		return models.UserProgress{}, err
	}

	for attempt := 1; attempt <= maxProgressAttempts; attempt++ {
		progress, exists, err := s.load(ctx, userID)
		if err != nil {
			return models.UserProgress{}, fmt.Errorf("load progress: %w", err)
		}

		progress.Score += session.RunningScore
		progress.Level = models.LevelForScore(progress.Score)
		progress.AddCompletedCategory(category.ID)
		if session.Perfect() {
			progress.AddMedal(category.MedalName())
		}

		var written bool
		if exists {
			written, err = s.repo.UpdateIfVersion(ctx, &progress)
		} else {
			written, err = s.repo.Create(ctx, &progress)
		}
		if err != nil {
			return models.UserProgress{}, fmt.Errorf("save progress: %w", err)
		}
		if written {
			s.logger.Info().
				Str("user_id", userID).
				Str("category_id", categoryID).
				Int("score", progress.Score).
				Str("level", string(progress.Level)).
				Msg("session merged into progress")
			return progress, nil
		}

		observability.ProgressConflicts().Inc()
		s.logger.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("progress version conflict")
	}

	return models.UserProgress{}, ErrProgressConflict
}
