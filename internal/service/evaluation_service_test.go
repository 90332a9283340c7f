package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

type stubCoach struct {
	mu       sync.Mutex
	feedback ai.Feedback
	err      error
	calls    int
}

func (c *stubCoach) Coach(ctx context.Context, input ai.CoachInput) (ai.Feedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return ai.Feedback{}, c.err
	}
	return c.feedback, nil
}

type fakeDecisionLogs struct {
	mu      sync.Mutex
	entries []models.DecisionLog
	err     error
	seq     int
}

func (r *fakeDecisionLogs) Create(ctx context.Context, entry *models.DecisionLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.seq++
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Unix(int64(r.seq), 0).UTC()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeDecisionLogs) ListRecent(ctx context.Context, userID string, limit int) ([]models.DecisionLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.DecisionLog, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDecisionLogs) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, userID string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event == eventType {
			n++
		}
	}
	return n
}

func modelFeedback() ai.Feedback {
	return ai.Feedback{
		Tone:         ai.ToneEncouraging,
		KeyTakeaway:  "Move away from traffic first.",
		Feedback:     "Good call.",
		RealWorldTip: "Switch on hazard lights.",
		Consequence:  "Nobody else gets hurt.",
	}
}

func sampleEvaluationRequest(isCorrect bool) EvaluationRequest {
	return EvaluationRequest{
		UserID:        "user-1",
		Category:      "Road Accidents",
		Question:      "A car crashed ahead. What do you do?",
		UserAnswer:    "Call emergency services",
		CorrectAnswer: "Call emergency services",
		IsCorrect:     isCorrect,
		Explanation:   "Professional help is the priority.",
	}
}

func TestEvaluationServiceUsesModelFeedback(t *testing.T) {
	coach := &stubCoach{feedback: modelFeedback()}
	logs := &fakeDecisionLogs{}
	reports := &recordingInvalidator{}
	events := &recordingPublisher{}
	svc := NewEvaluationService(coach, logs, reports, events, zerolog.Nop())

	result := svc.Evaluate(context.Background(), sampleEvaluationRequest(true))

	require.Equal(t, quiz.SourceModel, result.Source)
	require.Equal(t, modelFeedback(), result.Feedback)
	require.True(t, result.LogSaved)
	require.NotEmpty(t, result.LogID)

	require.Equal(t, 1, logs.count())
	entry := logs.entries[0]
	require.Equal(t, "user-1", entry.UserID)
	require.Equal(t, "Road Accidents", entry.CategoryName)
	require.True(t, entry.IsCorrect)
	require.Equal(t, "encouraging", *entry.Tone)
	require.Equal(t, "Move away from traffic first.", *entry.KeyTakeaway)

	require.Equal(t, []string{"user-1"}, reports.users)
	require.Equal(t, 1, events.count(EventDecisionLogged))
}

func TestEvaluationServiceFallsBackOnCoachError(t *testing.T) {
	coach := &stubCoach{err: errors.New("upstream returned 500")}
	logs := &fakeDecisionLogs{}
	svc := NewEvaluationService(coach, logs, nil, nil, zerolog.Nop())

	req := sampleEvaluationRequest(false)
	req.UserAnswer = "Drive past"
	result := svc.Evaluate(context.Background(), req)

	require.Equal(t, quiz.SourceFallback, result.Source)
	require.Equal(t, ai.ToneCorrective, result.Feedback.Tone)
	require.Equal(t, "Staying calm and thinking through your options is key in any crisis.", result.Feedback.KeyTakeaway)
	require.Equal(t, req.Explanation, result.Feedback.Feedback)
	require.Equal(t, ai.FallbackRealWorldTip, result.Feedback.RealWorldTip)
	require.Equal(t, ai.FallbackConsequenceBad, result.Feedback.Consequence)
	require.True(t, result.LogSaved)
	require.Equal(t, 1, logs.count())
	require.Equal(t, "corrective", *logs.entries[0].Tone)
}

func TestEvaluationServiceWithoutCoachUsesFallback(t *testing.T) {
	logs := &fakeDecisionLogs{}
	svc := NewEvaluationService(nil, logs, nil, nil, zerolog.Nop())

	result := svc.Evaluate(context.Background(), sampleEvaluationRequest(true))

	require.Equal(t, quiz.SourceFallback, result.Source)
	require.Equal(t, ai.ToneEncouraging, result.Feedback.Tone)
	require.Equal(t, ai.FallbackConsequenceOK, result.Feedback.Consequence)
}

func TestEvaluationServiceReportsLogFailureAsWarning(t *testing.T) {
	coach := &stubCoach{feedback: modelFeedback()}
	logs := &fakeDecisionLogs{err: errors.New("database unavailable")}
	reports := &recordingInvalidator{}
	svc := NewEvaluationService(coach, logs, reports, nil, zerolog.Nop())

	result := svc.Evaluate(context.Background(), sampleEvaluationRequest(true))

	require.False(t, result.LogSaved)
	require.Empty(t, result.LogID)
	require.Equal(t, quiz.SourceModel, result.Source)
	require.True(t, result.Feedback.Complete())
	require.Empty(t, reports.users)
}

func TestEvaluationServiceWritesLogAfterCallerCancels(t *testing.T) {
	logs := &fakeDecisionLogs{}
	svc := NewEvaluationService(nil, logs, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Evaluate(ctx, sampleEvaluationRequest(false))
	require.True(t, result.LogSaved)
	require.Equal(t, 1, logs.count())
}
