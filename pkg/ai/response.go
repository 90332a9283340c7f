package ai

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const feedbackSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["tone", "key_takeaway", "feedback", "real_world_tip", "consequence"],
  "properties": {
    "tone": {"enum": ["encouraging", "corrective"]},
    "key_takeaway": {"type": "string", "minLength": 1},
    "feedback": {"type": "string", "minLength": 1},
    "real_world_tip": {"type": "string", "minLength": 1},
    "consequence": {"type": "string", "minLength": 1}
  }
}`

var (
	compiledFeedbackSchema = jsonschema.MustCompileString("coach_feedback.schema.json", feedbackSchema)
	textPolicy             = bluemonday.StrictPolicy()
)

// StripCodeFences removes markdown code fence lines wrapped around a model reply.
func StripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ParseFeedback decodes and validates a model reply. It never returns partial feedback.
func ParseFeedback(content string) (Feedback, error) {
	content = StripCodeFences(content)
	if content == "" {
		return Feedback{}, fmt.Errorf("empty coach response")
	}

	var document interface{}
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return Feedback{}, fmt.Errorf("parse coach json: %w", err)
	}
	if err := compiledFeedbackSchema.Validate(document); err != nil {
		return Feedback{}, fmt.Errorf("coach response schema: %w", err)
	}

	var feedback Feedback
	if err := json.Unmarshal([]byte(content), &feedback); err != nil {
		return Feedback{}, fmt.Errorf("decode coach feedback: %w", err)
	}

	feedback.KeyTakeaway = sanitizeText(feedback.KeyTakeaway)
	feedback.Feedback = sanitizeText(feedback.Feedback)
	feedback.RealWorldTip = sanitizeText(feedback.RealWorldTip)
	feedback.Consequence = sanitizeText(feedback.Consequence)

	if !feedback.Complete() {
		return Feedback{}, fmt.Errorf("coach response has blank fields after sanitization")
	}

	return feedback, nil
}

func sanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}
