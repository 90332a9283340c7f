package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	coachDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crisiscoach",
		Subsystem: "ai",
		Name:      "coach_duration_seconds",
		Help:      "Duration of coach model requests",
	}, []string{"model"})

	coachFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crisiscoach",
		Subsystem: "ai",
		Name:      "coach_failures_total",
		Help:      "Number of coach model failures",
	}, []string{"model", "reason"})
)

// OpenAIConfig defines configuration options for the OpenAI-compatible coach.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points the client at an OpenAI-compatible gateway. Empty uses api.openai.com.
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// JSONMode sends response_format=json_object. Some compatible gateways reject it.
	JSONMode bool
	Logger   zerolog.Logger
}

// OpenAICoach implements Coach against the chat completion API.
type OpenAICoach struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAICoach builds a new coach using the provided configuration.
func NewOpenAICoach(cfg OpenAIConfig) (*OpenAICoach, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	tracer := otel.Tracer("github.com/noah-isme/crisiscoach-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAICoach{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_coach").Logger(),
	}, nil
}

// Coach sends a single request to the model and parses the reply. There is no retry.
func (c *OpenAICoach) Coach(parent context.Context, input CoachInput) (Feedback, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "openai.coach", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Bool("answer.correct", input.IsCorrect),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: coachSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
	}
	if c.cfg.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	coachDuration.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return Feedback{}, c.fail(span, "request", fmt.Errorf("openai coach: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Feedback{}, c.fail(span, "empty", fmt.Errorf("no choices returned from model"))
	}

	feedback, err := ParseFeedback(resp.Choices[0].Message.Content)
	if err != nil {
		return Feedback{}, c.fail(span, "parse", err)
	}

	span.SetAttributes(attribute.String("coach.tone", string(feedback.Tone)))
	return feedback, nil
}

func (c *OpenAICoach) fail(span trace.Span, reason string, err error) error {
	coachFailures.WithLabelValues(c.cfg.Model, reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func coachSystemPrompt() string {
	return "You are a crisis management coach named Coach. Be calm, supportive and clear, never shame the trainee, keep it concise.\n" +
		"Respond with one strictly valid JSON object and nothing else: no markdown, no code fences, no commentary.\n" +
		"The object must contain exactly these fields:\n" +
		"- tone: \"encouraging\" or \"corrective\"\n" +
		"- key_takeaway: one short sentence\n" +
		"- feedback: a 2-3 sentence explanation\n" +
		"- real_world_tip: one practical safety tip\n" +
		"- consequence: one sentence describing the likely real-world consequence of the trainee's choice"
}

func buildUserPrompt(input CoachInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Scenario Question\n")
	builder.WriteString(input.Question)
	builder.WriteString("\n\n## Trainee Answer\n")
	builder.WriteString(input.UserAnswer)
	builder.WriteString("\n\n## Correct Answer\n")
	builder.WriteString(input.CorrectAnswer)
	builder.WriteString("\n\n## Was the trainee correct?\n")
	if input.IsCorrect {
		builder.WriteString("yes")
	} else {
		builder.WriteString("no")
	}
	builder.WriteString("\n\n## Official Explanation\n")
	builder.WriteString(input.Explanation)
	builder.WriteString("\n\nFocus on decision-making under stress, safety prioritization, and what to remember next time.")
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
