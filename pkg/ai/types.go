package ai

import "context"

// Tone classifies coaching feedback.
type Tone string

const (
	ToneEncouraging Tone = "encouraging"
	ToneCorrective  Tone = "corrective"
)

// Valid reports whether the tone is one of the known values.
func (t Tone) Valid() bool {
	return t == ToneEncouraging || t == ToneCorrective
}

// ToneFor returns the tone implied by answer correctness.
func ToneFor(isCorrect bool) Tone {
	if isCorrect {
		return ToneEncouraging
	}
	return ToneCorrective
}

// CoachInput carries a single answered scenario to the coach model.
type CoachInput struct {
	Question      string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
	Explanation   string
}

// Feedback is the structured coaching result for one answer. All fields are populated.
type Feedback struct {
	Tone         Tone   `json:"tone"`
	KeyTakeaway  string `json:"key_takeaway"`
	Feedback     string `json:"feedback"`
	RealWorldTip string `json:"real_world_tip"`
	Consequence  string `json:"consequence"`
}

// Complete reports whether every field carries a value.
func (f Feedback) Complete() bool {
	return f.Tone.Valid() && f.KeyTakeaway != "" && f.Feedback != "" && f.RealWorldTip != "" && f.Consequence != ""
}

// Coach describes a model capable of producing coaching feedback.
type Coach interface {
	Coach(ctx context.Context, input CoachInput) (Feedback, error)
}
