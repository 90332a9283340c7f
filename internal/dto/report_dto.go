package dto

import (
	"time"

	"github.com/noah-isme/crisiscoach-go-api/internal/analytics"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
)

// DecisionLogResponse is a decision log entry as shown in reports.
type DecisionLogResponse struct {
	ID            string    `json:"id"`
	Category      string    `json:"scenario"`
	Question      string    `json:"question"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	KeyTakeaway   *string   `json:"key_takeaway"`
	Tone          *string   `json:"tone"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewDecisionLogResponse converts a decision log model.
func NewDecisionLogResponse(entry models.DecisionLog) DecisionLogResponse {
	return DecisionLogResponse{
		ID:            entry.ID,
		Category:      entry.CategoryName,
		Question:      entry.Question,
		UserAnswer:    entry.UserAnswer,
		CorrectAnswer: entry.CorrectAnswer,
		IsCorrect:     entry.IsCorrect,
		KeyTakeaway:   entry.KeyTakeaway,
		Tone:          entry.Tone,
		CreatedAt:     entry.CreatedAt,
	}
}

// AfterActionReport summarises a user's recent decisions.
type AfterActionReport struct {
	Summary    analytics.Summary     `json:"summary"`
	Confidence *analytics.Confidence `json:"confidence,omitempty"`
	Insight    *analytics.Insight    `json:"insight,omitempty"`
	Decisions  []DecisionLogResponse `json:"decisions"`
}
