package quiz

import (
	"errors"
	"time"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

const (
	// PointsPerCorrect is awarded for every correct answer.
	PointsPerCorrect = 20
	// DefaultQuestionSeconds is the countdown for each question.
	DefaultQuestionSeconds = 30
	// TimedOutOption marks an outcome synthesized by the countdown.
	TimedOutOption = -1
	// TimedOutAnswerText is recorded as the user answer for timed-out questions.
	TimedOutAnswerText = "No answer (time expired)"
)

var (
	ErrAlreadyAnswered   = errors.New("question already answered")
	ErrInvalidOption     = errors.New("option index out of range")
	ErrFeedbackPending   = errors.New("feedback still pending")
	ErrNotAnswered       = errors.New("question not answered yet")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrScenarioMismatch  = errors.New("scenario does not match current question")
	ErrNoPendingFeedback = errors.New("no feedback pending")
)

// Mode controls when feedback is revealed. The state transitions are identical.
type Mode string

const (
	ModeTraining   Mode = "training"
	ModeAssessment Mode = "assessment"
)

// ParseMode normalises a mode value, defaulting to training.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case "", ModeTraining:
		return ModeTraining, true
	case ModeAssessment:
		return ModeAssessment, true
	default:
		return "", false
	}
}

// State is the coarse position of a session in its lifecycle.
type State string

const (
	StateInProgress State = "in_progress"
	StateAnswered   State = "answered"
	StateCompleted  State = "completed"
)

// FeedbackSource records whether feedback came from the model or the local fallback.
type FeedbackSource string

const (
	SourceModel    FeedbackSource = "model"
	SourceFallback FeedbackSource = "fallback"
)

// Outcome is the immutable record of one answered or timed-out question.
type Outcome struct {
	ScenarioID     string         `json:"scenario_id"`
	QuestionIndex  int            `json:"question_index"`
	ChosenOption   int            `json:"chosen_option"`
	IsCorrect      bool           `json:"is_correct"`
	AwardedPoints  int            `json:"awarded_points"`
	Feedback       *ai.Feedback   `json:"feedback,omitempty"`
	FeedbackSource FeedbackSource `json:"feedback_source,omitempty"`
	AnsweredAt     time.Time      `json:"answered_at"`
}

// TimedOut reports whether the outcome was produced by the countdown.
func (o Outcome) TimedOut() bool {
	return o.ChosenOption == TimedOutOption
}

// Session is one user's timed attempt at every scenario of a category.
// It is transient: only its aggregate effect is persisted.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CategoryID      string     `json:"category_id"`
	ScenarioIDs     []string   `json:"scenario_ids"`
	Mode            Mode       `json:"mode"`
	State           State      `json:"state"`
	CurrentIndex    int        `json:"current_index"`
	QuestionSeconds int        `json:"question_seconds"`
	TimeRemaining   int        `json:"time_remaining_seconds"`
	Answered        bool       `json:"is_answered"`
	FeedbackPending bool       `json:"feedback_pending"`
	Outcomes        []Outcome  `json:"outcomes"`
	RunningScore    int        `json:"running_score"`
	CorrectCount    int        `json:"correct_count"`
	StartedAt       time.Time  `json:"started_at"`
	LastTickAt      time.Time  `json:"last_tick_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Start opens a fresh session on the first question of the category.
func Start(id, userID string, category catalog.Category, mode Mode, questionSeconds int, now time.Time) *Session {
	if questionSeconds <= 0 {
		questionSeconds = DefaultQuestionSeconds
	}
	if mode == "" {
		mode = ModeTraining
	}

	ids := make([]string, 0, len(category.Scenarios))
	for _, scenario := range category.Scenarios {
		ids = append(ids, scenario.ID)
	}

	return &Session{
		ID:              id,
		UserID:          userID,
		CategoryID:      category.ID,
		ScenarioIDs:     ids,
		Mode:            mode,
		State:           StateInProgress,
		QuestionSeconds: questionSeconds,
		TimeRemaining:   questionSeconds,
		Outcomes:        []Outcome{},
		StartedAt:       now,
		LastTickAt:      now,
	}
}

// TotalQuestions is the number of scenarios in the attempt.
func (s *Session) TotalQuestions() int {
	return len(s.ScenarioIDs)
}

// Perfect reports whether every question was answered correctly.
func (s *Session) Perfect() bool {
	return s.TotalQuestions() > 0 && s.CorrectCount == s.TotalQuestions()
}

// Completed reports whether the session reached its terminal state.
func (s *Session) Completed() bool {
	return s.State == StateCompleted
}

// Counting reports whether the countdown is running.
func (s *Session) Counting() bool {
	return s.State == StateInProgress && !s.Answered
}

// Tick advances the countdown by one second. It returns true when the tick
// exhausted the timer and committed a timed-out answer.
func (s *Session) Tick(now time.Time) bool {
	if !s.Counting() || s.TimeRemaining <= 0 {
		return false
	}

	s.TimeRemaining--
	s.LastTickAt = s.LastTickAt.Add(time.Second)
	if s.TimeRemaining > 0 {
		return false
	}

	s.commit(Outcome{
		ScenarioID:    s.ScenarioIDs[s.CurrentIndex],
		QuestionIndex: s.CurrentIndex,
		ChosenOption:  TimedOutOption,
		AnsweredAt:    now,
	})
	return true
}

// CatchUp applies one tick per whole second elapsed since the last tick.
func (s *Session) CatchUp(now time.Time) bool {
	for s.Counting() && now.Sub(s.LastTickAt) >= time.Second {
		if s.Tick(now) {
			return true
		}
	}
	return false
}

// Submit records the user's choice for the current question. A second
// submission, or one racing a timeout that already committed, is rejected
// without changing state.
func (s *Session) Submit(scenario catalog.Scenario, option int, now time.Time) (Outcome, error) {
	switch {
	case s.State == StateCompleted:
		return Outcome{}, ErrSessionCompleted
	case s.Answered:
		return Outcome{}, ErrAlreadyAnswered
	}
	if scenario.ID != s.ScenarioIDs[s.CurrentIndex] {
		return Outcome{}, ErrScenarioMismatch
	}
	if option < 0 || option >= len(scenario.Options) {
		return Outcome{}, ErrInvalidOption
	}

	outcome := Outcome{
		ScenarioID:    scenario.ID,
		QuestionIndex: s.CurrentIndex,
		ChosenOption:  option,
		IsCorrect:     scenario.IsCorrect(option),
		AnsweredAt:    now,
	}
	if outcome.IsCorrect {
		outcome.AwardedPoints = PointsPerCorrect
	}

	s.commit(outcome)
	return outcome, nil
}

func (s *Session) commit(outcome Outcome) {
	s.Answered = true
	s.FeedbackPending = true
	s.State = StateAnswered
	if outcome.IsCorrect {
		s.RunningScore += PointsPerCorrect
		s.CorrectCount++
	}
	s.Outcomes = append(s.Outcomes, outcome)
}

// PendingOutcome returns the outcome awaiting feedback, if any.
func (s *Session) PendingOutcome() (Outcome, bool) {
	if !s.FeedbackPending || len(s.Outcomes) == 0 {
		return Outcome{}, false
	}
	return s.Outcomes[len(s.Outcomes)-1], true
}

// LastOutcome returns the most recently committed outcome.
func (s *Session) LastOutcome() (Outcome, bool) {
	if len(s.Outcomes) == 0 {
		return Outcome{}, false
	}
	return s.Outcomes[len(s.Outcomes)-1], true
}

// ResolveFeedback attaches evaluation feedback to the pending outcome.
func (s *Session) ResolveFeedback(feedback ai.Feedback, source FeedbackSource) error {
	if !s.FeedbackPending || len(s.Outcomes) == 0 {
		return ErrNoPendingFeedback
	}
	last := &s.Outcomes[len(s.Outcomes)-1]
	last.Feedback = &feedback
	last.FeedbackSource = source
	s.FeedbackPending = false
	return nil
}

// Advance moves to the next question, or completes the session after the last
// one. completed is true only on the transition into the completed state.
func (s *Session) Advance(now time.Time) (completed bool, err error) {
	switch {
	case s.State == StateCompleted:
		return false, ErrSessionCompleted
	case !s.Answered:
		return false, ErrNotAnswered
	case s.FeedbackPending:
		return false, ErrFeedbackPending
	}

	if s.CurrentIndex+1 < s.TotalQuestions() {
		s.CurrentIndex++
		s.Answered = false
		s.State = StateInProgress
		s.TimeRemaining = s.QuestionSeconds
		s.LastTickAt = now
		return false, nil
	}

	s.State = StateCompleted
	s.CompletedAt = &now
	return true, nil
}
