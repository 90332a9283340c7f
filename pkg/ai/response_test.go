package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validReply = `{"tone":"encouraging","key_takeaway":"Seek a public place.","feedback":"You moved to safety quickly.","real_world_tip":"Share your live location.","consequence":"Witnesses deter the follower."}`

func TestParseFeedbackAcceptsPlainJSON(t *testing.T) {
	feedback, err := ParseFeedback(validReply)
	require.NoError(t, err)
	require.Equal(t, ToneEncouraging, feedback.Tone)
	require.Equal(t, "Seek a public place.", feedback.KeyTakeaway)
	require.True(t, feedback.Complete())
}

func TestParseFeedbackStripsCodeFences(t *testing.T) {
	feedback, err := ParseFeedback("```json\n" + validReply + "\n```")
	require.NoError(t, err)
	require.Equal(t, "Witnesses deter the follower.", feedback.Consequence)
}

func TestParseFeedbackRejectsMissingField(t *testing.T) {
	_, err := ParseFeedback(`{"tone":"corrective","key_takeaway":"x","feedback":"y","real_world_tip":"z"}`)
	require.Error(t, err)
}

func TestParseFeedbackRejectsUnknownTone(t *testing.T) {
	_, err := ParseFeedback(`{"tone":"angry","key_takeaway":"x","feedback":"y","real_world_tip":"z","consequence":"c"}`)
	require.Error(t, err)
}

func TestParseFeedbackRejectsExtraFields(t *testing.T) {
	_, err := ParseFeedback(`{"tone":"corrective","key_takeaway":"x","feedback":"y","real_world_tip":"z","consequence":"c","score":1}`)
	require.Error(t, err)
}

func TestParseFeedbackRejectsProse(t *testing.T) {
	_, err := ParseFeedback("Great job! You stayed calm.")
	require.Error(t, err)
}

func TestParseFeedbackSanitizesMarkup(t *testing.T) {
	feedback, err := ParseFeedback(`{"tone":"corrective","key_takeaway":"<b>Don't</b> panic & breathe","feedback":"<script>alert(1)</script>Stay put.","real_world_tip":"Call 112.","consequence":"Delay."}`)
	require.NoError(t, err)
	require.Equal(t, "Don't panic & breathe", feedback.KeyTakeaway)
	require.Equal(t, "Stay put.", feedback.Feedback)
}

func TestParseFeedbackRejectsMarkupOnlyField(t *testing.T) {
	_, err := ParseFeedback(`{"tone":"corrective","key_takeaway":"<br/>","feedback":"y","real_world_tip":"z","consequence":"c"}`)
	require.Error(t, err)
}

func TestFallbackKeyedOnCorrectness(t *testing.T) {
	correct := Fallback(CoachInput{IsCorrect: true, Explanation: "Because."})
	require.Equal(t, ToneEncouraging, correct.Tone)
	require.Equal(t, FallbackKeyTakeaway, correct.KeyTakeaway)
	require.Equal(t, "Because.", correct.Feedback)
	require.Equal(t, FallbackRealWorldTip, correct.RealWorldTip)
	require.Equal(t, FallbackConsequenceOK, correct.Consequence)

	wrong := Fallback(CoachInput{IsCorrect: false, Explanation: "Because."})
	require.Equal(t, ToneCorrective, wrong.Tone)
	require.Equal(t, FallbackConsequenceBad, wrong.Consequence)
	require.True(t, wrong.Complete())
}
