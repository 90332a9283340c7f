package dto

import "github.com/noah-isme/crisiscoach-go-api/internal/models"

// levelCeilings holds the exclusive upper bound of each level; platinum has none.
var levelCeilings = map[models.Level]struct {
	next    models.Level
	ceiling int
}{
	models.LevelBronze:  {models.LevelSilver, 100},
	models.LevelSilver:  {models.LevelGold, 250},
	models.LevelGold:    {models.LevelDiamond, 500},
	models.LevelDiamond: {models.LevelPlatinum, 800},
}

// ProgressResponse describes a user's durable progress.
type ProgressResponse struct {
	Score               int      `json:"score"`
	Level               string   `json:"level"`
	NextLevel           string   `json:"next_level,omitempty"`
	PointsToNextLevel   int      `json:"points_to_next_level"`
	CompletedCategories []string `json:"completed_categories"`
	Medals              []string `json:"medals"`
}

// NewProgressResponse converts the progress model.
func NewProgressResponse(progress models.UserProgress) ProgressResponse {
	response := ProgressResponse{
		Score:               progress.Score,
		Level:               string(progress.Level),
		CompletedCategories: append([]string{}, progress.CompletedCategories...),
		Medals:              append([]string{}, progress.Medals...),
	}

	if next, ok := levelCeilings[progress.Level]; ok {
		response.NextLevel = string(next.next)
		response.PointsToNextLevel = next.ceiling - progress.Score
		if response.PointsToNextLevel < 0 {
			response.PointsToNextLevel = 0
		}
	}

	return response
}
