package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Level is the tier derived from a user's cumulative score.
type Level string

const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelDiamond  Level = "diamond"
	LevelPlatinum Level = "platinum"
)

type levelTier struct {
	level    Level
	minScore int
}

// levelTiers is ordered from the highest threshold down; lower bounds are inclusive.
var levelTiers = []levelTier{
	{LevelPlatinum, 800},
	{LevelDiamond, 500},
	{LevelGold, 250},
	{LevelSilver, 100},
	{LevelBronze, 0},
}

// LevelForScore recomputes the level from scratch for the given score.
func LevelForScore(score int) Level {
	for _, tier := range levelTiers {
		if score >= tier.minScore {
			return tier.level
		}
	}
	return LevelBronze
}

// Rank orders levels bronze < silver < gold < diamond < platinum.
func (l Level) Rank() int {
	for i, tier := range levelTiers {
		if tier.level == l {
			return len(levelTiers) - 1 - i
		}
	}
	return -1
}

// UserProgress is the durable per-user score, level, completion and medal state.
type UserProgress struct {
	UserID              string                      `gorm:"primaryKey;size:64" json:"user_id"`
	Score               int                         `gorm:"not null;default:0" json:"score"`
	Level               Level                       `gorm:"size:16;not null" json:"level"`
	CompletedCategories datatypes.JSONSlice[string] `gorm:"type:json" json:"completed_categories"`
	Medals              datatypes.JSONSlice[string] `gorm:"type:json" json:"medals"`
	Version             int                         `gorm:"not null;default:0" json:"-"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// TableName keeps the singular table name used by the identity platform.
func (UserProgress) TableName() string {
	return "user_progress"
}

// NewUserProgress returns the all-zero progress for a user without a record.
func NewUserProgress(userID string) UserProgress {
	return UserProgress{
		UserID:              userID,
		Level:               LevelBronze,
		CompletedCategories: datatypes.JSONSlice[string]{},
		Medals:              datatypes.JSONSlice[string]{},
	}
}

// AddCompletedCategory inserts the category if absent and reports whether it was added.
func (p *UserProgress) AddCompletedCategory(categoryID string) bool {
	if slices.Contains(p.CompletedCategories, categoryID) {
		return false
	}
	p.CompletedCategories = append(p.CompletedCategories, categoryID)
	return true
}

// AddMedal inserts the medal if absent and reports whether it was added.
func (p *UserProgress) AddMedal(name string) bool {
	if slices.Contains(p.Medals, name) {
		return false
	}
	p.Medals = append(p.Medals, name)
	return true
}
