package ai

const (
	FallbackKeyTakeaway    = "Staying calm and thinking through your options is key in any crisis."
	FallbackRealWorldTip   = "When in doubt, move to a safe place and contact local emergency services."
	FallbackConsequenceOK  = "Your choice would likely keep you and others safe while help arrives."
	FallbackConsequenceBad = "In a real emergency this choice could increase the risk of harm to you or others."
)

// Fallback builds deterministic feedback used whenever the model cannot answer.
func Fallback(input CoachInput) Feedback {
	consequence := FallbackConsequenceBad
	if input.IsCorrect {
		consequence = FallbackConsequenceOK
	}

	explanation := input.Explanation
	if explanation == "" {
		explanation = FallbackKeyTakeaway
	}

	return Feedback{
		Tone:         ToneFor(input.IsCorrect),
		KeyTakeaway:  FallbackKeyTakeaway,
		Feedback:     explanation,
		RealWorldTip: FallbackRealWorldTip,
		Consequence:  consequence,
	}
}
