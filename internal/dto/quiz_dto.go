package dto

import (
	"time"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

// StartSessionRequest opens a quiz session.
type StartSessionRequest struct {
	CategoryID string `json:"category_id" validate:"required,max=64"`
	Mode       string `json:"mode" validate:"omitempty,oneof=training assessment"`
}

// AnswerRequest submits an option for the current question.
type AnswerRequest struct {
	OptionIndex *int `json:"option_index" validate:"required,gte=0"`
}

// QuestionView is the current scenario without its answer.
type QuestionView struct {
	ScenarioID string   `json:"scenario_id"`
	Label      string   `json:"label"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
}

// OutcomeView is an answered question. Feedback and the correct option are
// withheld in assessment mode until the session completes.
type OutcomeView struct {
	ScenarioID     string       `json:"scenario_id"`
	QuestionIndex  int          `json:"question_index"`
	ChosenOption   int          `json:"chosen_option"`
	TimedOut       bool         `json:"timed_out"`
	IsCorrect      bool         `json:"is_correct"`
	AwardedPoints  int          `json:"awarded_points"`
	CorrectOption  *int         `json:"correct_option,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	Feedback       *ai.Feedback `json:"feedback,omitempty"`
	FeedbackSource string       `json:"feedback_source,omitempty"`
	AnsweredAt     time.Time    `json:"answered_at"`
}

// SessionResponse is the caller-visible state of a quiz session.
type SessionResponse struct {
	ID              string        `json:"id"`
	CategoryID      string        `json:"category_id"`
	CategoryName    string        `json:"category_name"`
	Mode            string        `json:"mode"`
	State           string        `json:"state"`
	QuestionNumber  int           `json:"question_number"`
	TotalQuestions  int           `json:"total_questions"`
	TimeRemaining   int           `json:"time_remaining_seconds"`
	IsAnswered      bool          `json:"is_answered"`
	FeedbackPending bool          `json:"feedback_pending"`
	RunningScore    int           `json:"running_score"`
	CorrectCount    int           `json:"correct_count"`
	Question        *QuestionView `json:"question,omitempty"`
	Outcomes        []OutcomeView `json:"outcomes"`
}

// NewSessionResponse renders a session for its owner, applying the mode's
// feedback visibility policy.
func NewSessionResponse(session *quiz.Session, category catalog.Category) SessionResponse {
	response := SessionResponse{
		ID:              session.ID,
		CategoryID:      session.CategoryID,
		CategoryName:    category.Name,
		Mode:            string(session.Mode),
		State:           string(session.State),
		QuestionNumber:  session.CurrentIndex + 1,
		TotalQuestions:  session.TotalQuestions(),
		TimeRemaining:   session.TimeRemaining,
		IsAnswered:      session.Answered,
		FeedbackPending: session.FeedbackPending,
		RunningScore:    session.RunningScore,
		CorrectCount:    session.CorrectCount,
		Outcomes:        make([]OutcomeView, 0, len(session.Outcomes)),
	}

	if !session.Completed() && session.CurrentIndex < category.Len() {
		scenario := category.Scenarios[session.CurrentIndex]
		response.Question = &QuestionView{
			ScenarioID: scenario.ID,
			Label:      scenario.Label,
			Question:   scenario.Question,
			Options:    append([]string{}, scenario.Options...),
		}
	}

	for _, outcome := range session.Outcomes {
		response.Outcomes = append(response.Outcomes, NewOutcomeView(session, category, outcome))
	}

	return response
}

// NewOutcomeView renders one outcome under the session's visibility policy.
func NewOutcomeView(session *quiz.Session, category catalog.Category, outcome quiz.Outcome) OutcomeView {
	view := OutcomeView{
		ScenarioID:    outcome.ScenarioID,
		QuestionIndex: outcome.QuestionIndex,
		ChosenOption:  outcome.ChosenOption,
		TimedOut:      outcome.TimedOut(),
		IsCorrect:     outcome.IsCorrect,
		AwardedPoints: outcome.AwardedPoints,
		AnsweredAt:    outcome.AnsweredAt,
	}

	if !RevealsFeedback(session) {
		return view
	}

	if outcome.QuestionIndex < category.Len() {
		scenario := category.Scenarios[outcome.QuestionIndex]
		correct := scenario.CorrectOption
		view.CorrectOption = &correct
		view.Explanation = scenario.Explanation
	}
	view.Feedback = outcome.Feedback
	view.FeedbackSource = string(outcome.FeedbackSource)
	return view
}

// RevealsFeedback reports whether feedback may be shown for the session now.
func RevealsFeedback(session *quiz.Session) bool {
	return session.Mode != quiz.ModeAssessment || session.Completed()
}

// AnswerResponse is returned after an answer has been evaluated.
type AnswerResponse struct {
	Outcome  OutcomeView     `json:"outcome"`
	Session  SessionResponse `json:"session"`
	Warnings []string        `json:"warnings,omitempty"`
}

// SessionSummary is shown once a session completes.
type SessionSummary struct {
	PointsEarned   int    `json:"points_earned"`
	CorrectCount   int    `json:"correct_count"`
	TotalQuestions int    `json:"total_questions"`
	Perfect        bool   `json:"perfect"`
	Medal          string `json:"medal,omitempty"`
}

// AdvanceResponse is returned when moving past an answered question.
type AdvanceResponse struct {
	Completed     bool              `json:"completed"`
	Session       SessionResponse   `json:"session"`
	Summary       *SessionSummary   `json:"summary,omitempty"`
	Progress      *ProgressResponse `json:"progress,omitempty"`
	ProgressSaved bool              `json:"progress_saved"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// CountdownFrame is pushed over the session websocket once per second.
type CountdownFrame struct {
	SessionID      string `json:"session_id"`
	State          string `json:"state"`
	QuestionNumber int    `json:"question_number"`
	TimeRemaining  int    `json:"time_remaining_seconds"`
	IsAnswered     bool   `json:"is_answered"`
	Final          bool   `json:"final"`
}

// NewCountdownFrame summarises a session view for the countdown stream.
func NewCountdownFrame(session SessionResponse) CountdownFrame {
	return CountdownFrame{
		SessionID:      session.ID,
		State:          session.State,
		QuestionNumber: session.QuestionNumber,
		TimeRemaining:  session.TimeRemaining,
		IsAnswered:     session.IsAnswered,
		Final:          session.IsAnswered || session.State == "completed",
	}
}
