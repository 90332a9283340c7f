package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/crisiscoach-go-api/internal/models"
)

// UserProgressRepository reads and writes per-user progress records.
type UserProgressRepository interface {
	Get(ctx context.Context, userID string) (models.UserProgress, error)
	// Create inserts a new record and reports false when one already exists.
	Create(ctx context.Context, progress *models.UserProgress) (bool, error)
	// UpdateIfVersion writes the record only when the stored version still
	// matches progress.Version, then bumps the version. It reports false on a
	// version mismatch.
	UpdateIfVersion(ctx context.Context, progress *models.UserProgress) (bool, error)
}

type userProgressRepository struct {
	db *gorm.DB
}

// NewUserProgressRepository constructs the progress repository.
func NewUserProgressRepository(db *gorm.DB) UserProgressRepository {
	return &userProgressRepository{db: db}
}

func (r *userProgressRepository) Get(ctx context.Context, userID string) (models.UserProgress, error) {
	var progress models.UserProgress
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&progress).Error; err != nil {
		return models.UserProgress{}, err
	}
	return progress, nil
}

func (r *userProgressRepository) Create(ctx context.Context, progress *models.UserProgress) (bool, error) {
	progress.Version = 1
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(progress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *userProgressRepository) UpdateIfVersion(ctx context.Context, progress *models.UserProgress) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.UserProgress{}).
		Where("user_id = ? AND version = ?", progress.UserID, progress.Version).
		Updates(map[string]interface{}{
			"score":                progress.Score,
			"level":                progress.Level,
			"completed_categories": progress.CompletedCategories,
			"medals":               progress.Medals,
			"version":              progress.Version + 1,
			"updated_at":           now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	progress.Version++
	progress.UpdatedAt = now
	return true, nil
}
