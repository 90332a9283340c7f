package dto

import "github.com/noah-isme/crisiscoach-go-api/pkg/ai"

// EvaluateAnswerRequest is the body accepted by the evaluate-answer endpoint.
type EvaluateAnswerRequest struct {
	Question      string `json:"question" validate:"required"`
	UserAnswer    string `json:"userAnswer" validate:"required"`
	CorrectAnswer string `json:"correctAnswer" validate:"required"`
	IsCorrect     *bool  `json:"isCorrect" validate:"required"`
	Explanation   string `json:"explanation" validate:"required"`
	Category      string `json:"category" validate:"omitempty,max=128"`
}

// EvaluateAnswerResponse mirrors the coach contract.
type EvaluateAnswerResponse struct {
	Tone         string `json:"tone"`
	KeyTakeaway  string `json:"key_takeaway"`
	Feedback     string `json:"feedback"`
	RealWorldTip string `json:"real_world_tip"`
	Consequence  string `json:"consequence"`
}

// NewEvaluateAnswerResponse converts coach feedback into the response payload.
func NewEvaluateAnswerResponse(feedback ai.Feedback) EvaluateAnswerResponse {
	return EvaluateAnswerResponse{
		Tone:         string(feedback.Tone),
		KeyTakeaway:  feedback.KeyTakeaway,
		Feedback:     feedback.Feedback,
		RealWorldTip: feedback.RealWorldTip,
		Consequence:  feedback.Consequence,
	}
}
