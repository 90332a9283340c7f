package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/crisiscoach-go-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DecisionLog{}, &models.UserProgress{}))
	return db
}

func strPtr(value string) *string {
	return &value
}

func TestDecisionLogRepositoryListRecentOrdersAndCaps(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecisionLogRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := models.DecisionLog{
			UserID:        "user-1",
			CategoryName:  "Road Accidents",
			Question:      fmt.Sprintf("q%d", i),
			UserAnswer:    "a",
			CorrectAnswer: "b",
			Tone:          strPtr("corrective"),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, &entry))
		require.NotEmpty(t, entry.ID)
	}
	other := models.DecisionLog{UserID: "user-2", CategoryName: "Home Safety", Question: "x", UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true}
	require.NoError(t, repo.Create(ctx, &other))

	entries, err := repo.ListRecent(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "q4", entries[0].Question)
	require.Equal(t, "q2", entries[2].Question)
	for _, entry := range entries {
		require.Equal(t, "user-1", entry.UserID)
		require.Nil(t, entry.KeyTakeaway)
	}
}

func TestUserProgressRepositoryCreateAndConditionalUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserProgressRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "user-1")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	progress := models.NewUserProgress("user-1")
	progress.Score = 100
	progress.Level = models.LevelSilver
	progress.AddCompletedCategory("road-accidents")
	created, err := repo.Create(ctx, &progress)
	require.NoError(t, err)
	require.True(t, created)

	duplicate := models.NewUserProgress("user-1")
	created, err = repo.Create(ctx, &duplicate)
	require.NoError(t, err)
	require.False(t, created)

	stored, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 100, stored.Score)
	require.Equal(t, 1, stored.Version)
	require.Equal(t, []string{"road-accidents"}, []string(stored.CompletedCategories))

	stale := stored
	stored.Score = 140
	stored.AddMedal("Road Accidents Master")
	ok, err := repo.UpdateIfVersion(ctx, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, stored.Version)

	stale.Score = 999
	ok, err = repo.UpdateIfVersion(ctx, &stale)
	require.NoError(t, err)
	require.False(t, ok, "stale version must not overwrite")

	final, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 140, final.Score)
	require.Equal(t, []string{"Road Accidents Master"}, []string(final.Medals))
}
