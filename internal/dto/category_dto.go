package dto

import "github.com/noah-isme/crisiscoach-go-api/internal/catalog"

// CategoryResponse describes a catalog category.
type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Questions   int    `json:"questions"`
	Medal       string `json:"medal"`
	Completed   bool   `json:"completed"`
}

// NewCategoryResponse builds a category DTO.
func NewCategoryResponse(category catalog.Category, completed bool) CategoryResponse {
	return CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Questions:   category.Len(),
		Medal:       category.MedalName(),
		Completed:   completed,
	}
}
