package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/crisiscoach-go-api/internal/models"
)

// DecisionLogRepository persists the append-only decision log.
type DecisionLogRepository interface {
	Create(ctx context.Context, entry *models.DecisionLog) error
	ListRecent(ctx context.Context, userID string, limit int) ([]models.DecisionLog, error)
}

type decisionLogRepository struct {
	db *gorm.DB
}

// NewDecisionLogRepository constructs the decision log repository.
func NewDecisionLogRepository(db *gorm.DB) DecisionLogRepository {
	return &decisionLogRepository{db: db}
}

func (r *decisionLogRepository) Create(ctx context.Context, entry *models.DecisionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *decisionLogRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.DecisionLog, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.DecisionLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
