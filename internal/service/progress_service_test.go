package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

type fakeProgressRepo struct {
	mu        sync.Mutex
	records   map[string]models.UserProgress
	conflicts int
	updates   int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: map[string]models.UserProgress{}}
}

func (r *fakeProgressRepo) Get(ctx context.Context, userID string) (models.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[userID]
	if !ok {
		return models.UserProgress{}, gorm.ErrRecordNotFound
	}
	record.CompletedCategories = append([]string{}, record.CompletedCategories...)
	record.Medals = append([]string{}, record.Medals...)
	return record, nil
}

func (r *fakeProgressRepo) Create(ctx context.Context, progress *models.UserProgress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[progress.UserID]; exists {
		return false, nil
	}
	progress.Version = 1
	r.records[progress.UserID] = *progress
	return true, nil
}

func (r *fakeProgressRepo) UpdateIfVersion(ctx context.Context, progress *models.UserProgress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		return false, nil
	}
	current, ok := r.records[progress.UserID]
	if !ok || current.Version != progress.Version {
		return false, nil
	}
	progress.Version++
	r.records[progress.UserID] = *progress
	return true, nil
}

func completedSession(t *testing.T, category catalog.Category, userID string, wrong map[int]bool) *quiz.Session {
	t.Helper()
	now := time.Now()
	session := quiz.Start("session-"+category.ID, userID, category, quiz.ModeTraining, 30, now)
	for i, scenario := range category.Scenarios {
		option := scenario.CorrectOption
		if wrong[i] {
			option = (scenario.CorrectOption + 1) % len(scenario.Options)
		}
		_, err := session.Submit(scenario, option, now)
		require.NoError(t, err)
		require.NoError(t, session.ResolveFeedback(ai.Fallback(ai.CoachInput{}), quiz.SourceFallback))
		_, err = session.Advance(now)
		require.NoError(t, err)
	}
	require.True(t, session.Completed())
	return session
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func TestProgressServiceAwardsMedalForPerfectRun(t *testing.T) {
	scenarios := defaultCatalog(t)
	road, err := scenarios.Get("road-accidents")
	require.NoError(t, err)

	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, scenarios, zerolog.Nop())

	progress, err := svc.FinalizeSession(context.Background(), "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.NoError(t, err)
	require.Equal(t, 100, progress.Score)
	require.Equal(t, models.LevelSilver, progress.Level)
	require.Equal(t, []string{"road-accidents"}, []string(progress.CompletedCategories))
	require.Equal(t, []string{"Road Accidents Master"}, []string(progress.Medals))
}

func TestProgressServiceAccumulatesWithoutDuplicates(t *testing.T) {
	scenarios := defaultCatalog(t)
	road, err := scenarios.Get("road-accidents")
	require.NoError(t, err)

	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, scenarios, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.NoError(t, err)

	progress, err := svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", map[int]bool{0: true, 1: true}))
	require.NoError(t, err)
	require.Equal(t, 160, progress.Score)
	require.Equal(t, models.LevelSilver, progress.Level)
	require.Len(t, progress.CompletedCategories, 1)
	require.Len(t, progress.Medals, 1)
	require.Equal(t, 2, progress.Version)
}

func TestProgressServiceImperfectRunEarnsNoMedal(t *testing.T) {
	scenarios := defaultCatalog(t)
	fire, err := scenarios.Get("fire-emergencies")
	require.NoError(t, err)

	svc := NewProgressService(newFakeProgressRepo(), scenarios, zerolog.Nop())
	progress, err := svc.FinalizeSession(context.Background(), "user-2", fire.ID, completedSession(t, fire, "user-2", map[int]bool{4: true}))
	require.NoError(t, err)
	require.Equal(t, 80, progress.Score)
	require.Equal(t, models.LevelBronze, progress.Level)
	require.Equal(t, []string{"fire-emergencies"}, []string(progress.CompletedCategories))
	require.Empty(t, progress.Medals)
}

func TestProgressServiceRetriesVersionConflicts(t *testing.T) {
	scenarios := defaultCatalog(t)
	road, err := scenarios.Get("road-accidents")
	require.NoError(t, err)

	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, scenarios, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.NoError(t, err)

	repo.conflicts = 2
	progress, err := svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.NoError(t, err)
	require.Equal(t, 200, progress.Score)
	require.Equal(t, 3, repo.updates)
}

func TestProgressServiceSurfacesPersistentConflict(t *testing.T) {
	scenarios := defaultCatalog(t)
	road, err := scenarios.Get("road-accidents")
	require.NoError(t, err)

	repo := newFakeProgressRepo()
	svc := NewProgressService(repo, scenarios, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.NoError(t, err)

	repo.conflicts = maxProgressAttempts
	_, err = svc.FinalizeSession(ctx, "user-1", road.ID, completedSession(t, road, "user-1", nil))
	require.True(t, errors.Is(err, ErrProgressConflict))

	stored, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 100, stored.Score)
}

func TestProgressServiceRejectsUnfinishedOrForeignSession(t *testing.T) {
	scenarios := defaultCatalog(t)
	road, err := scenarios.Get("road-accidents")
	require.NoError(t, err)

	svc := NewProgressService(newFakeProgressRepo(), scenarios, zerolog.Nop())
	ctx := context.Background()

	open := quiz.Start("open", "user-1", road, quiz.ModeTraining, 30, time.Now())
	_, err = svc.FinalizeSession(ctx, "user-1", road.ID, open)
	require.True(t, errors.Is(err, ErrSessionNotFinished))

	_, err = svc.FinalizeSession(ctx, "user-2", road.ID, completedSession(t, road, "user-1", nil))
	require.True(t, errors.Is(err, ErrSessionMismatch))
}

func TestProgressServiceGetDefaultsForUnknownUser(t *testing.T) {
	svc := NewProgressService(newFakeProgressRepo(), defaultCatalog(t), zerolog.Nop())

	progress, err := svc.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, "nobody", progress.UserID)
	require.Zero(t, progress.Score)
	require.Equal(t, models.LevelBronze, progress.Level)
	require.Empty(t, progress.CompletedCategories)
}
