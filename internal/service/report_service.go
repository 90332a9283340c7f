package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/crisiscoach-go-api/internal/analytics"
	"github.com/noah-isme/crisiscoach-go-api/internal/dto"
	"github.com/noah-isme/crisiscoach-go-api/internal/models"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
)

// ReportService builds after-action reports from the decision log.
type ReportService interface {
	AfterAction(ctx context.Context, userID string) (dto.AfterActionReport, error)
	Invalidate(ctx context.Context, userID string)
}

type reportService struct {
	logs     repository.DecisionLogRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	sf       singleflight.Group
}

// NewReportService builds the report service. cache may be nil.
func NewReportService(logs repository.DecisionLogRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReportService {
	return &reportService{
		logs:     logs,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "report_service").Logger(),
	}
}

const reportBuildTimeout = 10 * time.Second

// Reports are cached per generation. Invalidate bumps the generation, so a fill
// that read the log before the bump lands under a key nobody reads again.
func reportGenerationKey(userID string) string {
	return "crisiscoach:report:" + userID + ":gen"
}

func reportCacheKey(userID, generation string) string {
	return "crisiscoach:report:" + userID + ":" + generation
}

func (s *reportService) generation(ctx context.Context, userID string) (string, error) {
	gen, err := s.cache.Get(ctx, reportGenerationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (s *reportService) AfterAction(ctx context.Context, userID string) (dto.AfterActionReport, error) {
	cacheKey := ""
	flightKey := userID

	if s.cache != nil {
		gen, err := s.generation(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read report generation")
		} else {
			cacheKey = reportCacheKey(userID, gen)
			flightKey = userID + ":" + gen
		}
	}

	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var report dto.AfterActionReport
			if unmarshalErr := json.Unmarshal([]byte(cached), &report); unmarshalErr == nil {
				s.logger.Debug().Str("user_id", userID).Msg("report cache hit")
				return report, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read report cache")
		}
	}

	result, err, _ := s.sf.Do(flightKey, func() (interface{}, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportBuildTimeout)
		defer cancel()

		entries, err := s.logs.ListRecent(flightCtx, userID, analytics.Window)
		if err != nil {
			return nil, err
		}

		report := buildReport(entries)

		if cacheKey != "" {
			payload, err := json.Marshal(report)
			if err == nil {
				if err := s.cache.Set(flightCtx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
					s.logger.Warn().Err(err).Msg("failed to store report cache")
				}
			}
		}

		return report, nil
	})
	if err != nil {
		return dto.AfterActionReport{}, err
	}

	return result.(dto.AfterActionReport), nil
}

func (s *reportService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	genKey := reportGenerationKey(userID)
	pipe := s.cache.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, s.cacheTTL+24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate report cache")
	}
}

func buildReport(entries []models.DecisionLog) dto.AfterActionReport {
	decisions := make([]analytics.Decision, 0, len(entries))
	responses := make([]dto.DecisionLogResponse, 0, len(entries))
	for _, entry := range entries {
		decision := analytics.Decision{
			Category:   entry.CategoryName,
			IsCorrect:  entry.IsCorrect,
			UserAnswer: entry.UserAnswer,
		}
		if entry.Tone != nil {
			decision.Tone = *entry.Tone
		}
		if entry.KeyTakeaway != nil {
			decision.KeyTakeaway = *entry.KeyTakeaway
		}
		decisions = append(decisions, decision)
		responses = append(responses, dto.NewDecisionLogResponse(entry))
	}

	report := dto.AfterActionReport{
		Summary:   analytics.Summarize(decisions),
		Decisions: responses,
	}

	if len(decisions) > 0 {
		confidence := analytics.ConfidenceScore(decisions)
		report.Confidence = &confidence
	}
	if insight, ok := analytics.PatternInsight(decisions); ok {
		report.Insight = &insight
	}

	return report
}
