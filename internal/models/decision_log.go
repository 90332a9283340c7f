package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecisionLog is the append-only audit trail of every answered question.
type DecisionLog struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:64;not null;index:idx_decision_logs_user_created,priority:1" json:"user_id"`
	CategoryName  string    `gorm:"size:128;not null" json:"scenario"`
	Question      string    `gorm:"type:text;not null" json:"question"`
	UserAnswer    string    `gorm:"type:text;not null" json:"user_answer"`
	CorrectAnswer string    `gorm:"type:text;not null" json:"correct_answer"`
	IsCorrect     bool      `gorm:"not null" json:"is_correct"`
	KeyTakeaway   *string   `gorm:"type:text" json:"key_takeaway"`
	Tone          *string   `gorm:"size:16" json:"tone"`
	CreatedAt     time.Time `gorm:"index:idx_decision_logs_user_created,priority:2" json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (d *DecisionLog) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
