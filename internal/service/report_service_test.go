package service

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
)

func logEntry(logs *fakeDecisionLogs, userID, category, answer string, correct bool, tone string) {
	takeaway := "Stay calm in " + category
	_ = logs.Create(context.Background(), &models.DecisionLog{
		UserID:        userID,
		CategoryName:  category,
		Question:      "What now?",
		UserAnswer:    answer,
		CorrectAnswer: "The safe option",
		IsCorrect:     correct,
		Tone:          &tone,
		KeyTakeaway:   &takeaway,
	})
}

func TestReportServiceBuildsAfterActionReport(t *testing.T) {
	logs := &fakeDecisionLogs{}
	logEntry(logs, "user-1", "Road Accidents", "The safe option", true, "encouraging")
	logEntry(logs, "user-1", "Road Accidents", "No answer (time expired)", false, "corrective")
	logEntry(logs, "user-1", "Fire Emergencies", "Run inside", false, "corrective")
	logEntry(logs, "user-2", "Home Safety", "The safe option", true, "encouraging")

	svc := NewReportService(logs, nil, time.Minute, zerolog.Nop())
	report, err := svc.AfterAction(context.Background(), "user-1")
	require.NoError(t, err)

	require.Equal(t, 3, report.Summary.Decisions)
	require.Equal(t, 1, report.Summary.Correct)
	require.Equal(t, 33, report.Summary.AccuracyPercent)
	require.Equal(t, 1, report.Summary.Timeouts)
	require.Equal(t, 1, report.Summary.Encouraging)
	require.Equal(t, []string{"Fire Emergencies", "Road Accidents"}, report.Summary.CategoriesTrained)
	require.Len(t, report.Decisions, 3)
	require.Equal(t, "Run inside", report.Decisions[0].UserAnswer)

	require.NotNil(t, report.Confidence)
	// 50 + 8 + 2 - 5 - 3 - 5
	require.Equal(t, 47, report.Confidence.Score)
	require.Equal(t, "Needs Work", report.Confidence.Band.Label)

	require.NotNil(t, report.Insight)
	require.Equal(t, "reactive", report.Insight.Pattern)
}

func TestReportServiceEmptyLogHasNoInsight(t *testing.T) {
	svc := NewReportService(&fakeDecisionLogs{}, nil, time.Minute, zerolog.Nop())

	report, err := svc.AfterAction(context.Background(), "new-user")
	require.NoError(t, err)
	require.Zero(t, report.Summary.Decisions)
	require.Nil(t, report.Confidence)
	require.Nil(t, report.Insight)
	require.Empty(t, report.Decisions)
}

func TestReportServiceCachesUntilInvalidated(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	logs := &fakeDecisionLogs{}
	logEntry(logs, "user-1", "Road Accidents", "The safe option", true, "encouraging")

	svc := NewReportService(logs, redisClient, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.AfterAction(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.Summary.Decisions)
	require.True(t, mini.Exists(reportCacheKey("user-1", "0")))

	logEntry(logs, "user-1", "Road Accidents", "Drive on", false, "corrective")

	cached, err := svc.AfterAction(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, cached.Summary.Decisions)

	svc.Invalidate(ctx, "user-1")
	gen, err := mini.Get(reportGenerationKey("user-1"))
	require.NoError(t, err)
	require.Equal(t, "1", gen)

	fresh, err := svc.AfterAction(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Summary.Decisions)
}

// pausingLogs holds the first ListRecent after it has read the log, until released.
type pausingLogs struct {
	repository.DecisionLogRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingLogs) ListRecent(ctx context.Context, userID string, limit int) ([]models.DecisionLog, error) {
	entries, err := p.DecisionLogRepository.ListRecent(ctx, userID, limit)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return entries, err
}

func TestReportServiceDropsFillRacingInvalidation(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	logs := &fakeDecisionLogs{}
	logEntry(logs, "user-1", "Road Accidents", "The safe option", true, "encouraging")

	paused := &pausingLogs{DecisionLogRepository: logs, read: make(chan struct{}), release: make(chan struct{})}
	reports := NewReportService(paused, redisClient, time.Minute, zerolog.Nop())
	evaluator := NewEvaluationService(nil, logs, reports, nil, zerolog.Nop())
	ctx := context.Background()

	type outcome struct {
		report dto.AfterActionReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := reports.AfterAction(ctx, "user-1")
		done <- outcome{report: report, err: err}
	}()

	<-paused.read
	result := evaluator.Evaluate(ctx, sampleEvaluationRequest(false))
	require.True(t, result.LogSaved)
	close(paused.release)

	stale := <-done
	require.NoError(t, stale.err)
	require.Equal(t, 1, stale.report.Summary.Decisions)

	fresh, err := reports.AfterAction(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Summary.Decisions)
}

func TestReportServiceBuildSurvivesCallerCancellation(t *testing.T) {
	logs := &fakeDecisionLogs{}
	logEntry(logs, "user-1", "Road Accidents", "The safe option", true, "encouraging")
	svc := NewReportService(logs, nil, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.AfterAction(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, report.Summary.Decisions)
}
