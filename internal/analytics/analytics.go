// Package analytics derives secondary scores from the decision log.
package analytics

import (
	"math"
	"strings"
)

// Window is the number of most-recent decisions the analytics consider.
const Window = 50

const (
	confidenceStart     = 50
	confidenceCorrect   = 8
	confidenceIncorrect = 5
	confidenceTimeout   = 3
	confidenceComposed  = 2
)

// Decision is the subset of a decision log entry the analytics need.
type Decision struct {
	Category    string
	IsCorrect   bool
	UserAnswer  string
	Tone        string
	KeyTakeaway string
}

// TimedOut reports whether the recorded answer indicates an expired timer.
func (d Decision) TimedOut() bool {
	return strings.Contains(d.UserAnswer, "No answer") || strings.Contains(d.UserAnswer, "time expired")
}

func window(decisions []Decision) []Decision {
	if len(decisions) > Window {
		return decisions[:Window]
	}
	return decisions
}

// Band describes a confidence range.
type Band struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Confidence is the confidence-under-pressure score.
type Confidence struct {
	Score int  `json:"score"`
	Band  Band `json:"band"`
}

// ConfidenceScore computes the clamped confidence score over the most recent decisions.
func ConfidenceScore(decisions []Decision) Confidence {
	score := confidenceStart
	for _, decision := range window(decisions) {
		if decision.IsCorrect {
			score += confidenceCorrect
		} else {
			score -= confidenceIncorrect
		}
		if decision.TimedOut() {
			score -= confidenceTimeout
		}
		if decision.Tone == "encouraging" && decision.IsCorrect {
			score += confidenceComposed
		}
	}

	score = clamp(score, 0, 100)
	return Confidence{Score: score, Band: BandFor(score)}
}

// BandFor maps a confidence score to its label.
func BandFor(score int) Band {
	switch {
	case score >= 85:
		return Band{Label: "Excellent", Description: "You remain composed under pressure and make sound decisions."}
	case score >= 70:
		return Band{Label: "Good", Description: "You handle pressure well with occasional hesitation."}
	case score >= 50:
		return Band{Label: "Developing", Description: "You're building resilience. Keep practicing to improve."}
	default:
		return Band{Label: "Needs Work", Description: "More training will help you stay calmer under pressure."}
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// InsightKind classifies a pattern insight.
type InsightKind string

const (
	InsightSuccess InsightKind = "success"
	InsightWarning InsightKind = "warning"
	InsightNeutral InsightKind = "neutral"
)

// Insight is the decision-pattern insight.
type Insight struct {
	Pattern        string      `json:"pattern"`
	Kind           InsightKind `json:"kind"`
	Message        string      `json:"message"`
	CorrectRate    float64     `json:"correct_rate"`
	CorrectiveRate float64     `json:"corrective_rate"`
	Decisions      int         `json:"decisions"`
}

// PatternInsight evaluates the priority cascade; the first matching rule wins.
// It returns false when there are no decisions.
func PatternInsight(decisions []Decision) (Insight, bool) {
	decisions = window(decisions)
	if len(decisions) == 0 {
		return Insight{}, false
	}

	var correct, corrective int
	for _, decision := range decisions {
		if decision.IsCorrect {
			correct++
		}
		if decision.Tone == "corrective" {
			corrective++
		}
	}

	total := float64(len(decisions))
	insight := Insight{
		CorrectRate:    float64(correct) / total,
		CorrectiveRate: float64(corrective) / total,
		Decisions:      len(decisions),
	}

	switch {
	case insight.CorrectRate >= 0.8:
		insight.Pattern = "safety_first"
		insight.Kind = InsightSuccess
		insight.Message = "You consistently prioritize safety and risk avoidance. Your decision-making under pressure is methodical and reliable."
	case insight.CorrectiveRate >= 0.6:
		insight.Pattern = "reactive"
		insight.Kind = InsightWarning
		insight.Message = "You tend to react quickly under pressure, which can sometimes reduce safety margins. Consider pausing before making critical decisions."
	case insight.CorrectRate >= 0.5:
		insight.Pattern = "balanced"
		insight.Kind = InsightNeutral
		insight.Message = "Your responses show a balance between quick action and careful consideration. Continue practicing to build stronger instincts."
	default:
		insight.Pattern = "beginner"
		insight.Kind = InsightWarning
		insight.Message = "Your training journey is just beginning. Focus on understanding the 'why' behind each correct response to build safer habits."
	}

	return insight, true
}

// Summary holds the after-action totals.
type Summary struct {
	Decisions         int      `json:"decisions"`
	Correct           int      `json:"correct"`
	AccuracyPercent   int      `json:"accuracy_percent"`
	Timeouts          int      `json:"timeouts"`
	Encouraging       int      `json:"encouraging"`
	CategoriesTrained []string `json:"categories_trained"`
	KeyTakeaways      []string `json:"key_takeaways"`
}

// maxTakeaways caps the takeaways surfaced in a summary.
const maxTakeaways = 5

// Summarize computes the after-action totals, preserving log order.
func Summarize(decisions []Decision) Summary {
	decisions = window(decisions)
	summary := Summary{
		Decisions:         len(decisions),
		CategoriesTrained: []string{},
		KeyTakeaways:      []string{},
	}

	seen := map[string]struct{}{}
	for _, decision := range decisions {
		if decision.IsCorrect {
			summary.Correct++
		}
		if decision.TimedOut() {
			summary.Timeouts++
		}
		if decision.Tone == "encouraging" {
			summary.Encouraging++
		}
		if _, ok := seen[decision.Category]; !ok {
			seen[decision.Category] = struct{}{}
			summary.CategoriesTrained = append(summary.CategoriesTrained, decision.Category)
		}
		if decision.KeyTakeaway != "" && len(summary.KeyTakeaways) < maxTakeaways {
			summary.KeyTakeaways = append(summary.KeyTakeaways, decision.KeyTakeaway)
		}
	}

	if summary.Decisions > 0 {
		summary.AccuracyPercent = int(math.Round(float64(summary.Correct) / float64(summary.Decisions) * 100))
	}

	return summary
}
