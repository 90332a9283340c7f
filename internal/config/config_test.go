package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CRISISCOACH_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "CrisisCoach API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, AIProviderOpenAI, cfg.AIProvider)
	require.Equal(t, 15*time.Second, cfg.AITimeout)
	require.Equal(t, 30, cfg.QuestionSeconds)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, time.Minute, cfg.ReportCacheTTL)
	require.True(t, cfg.AIJSONMode)
	require.False(t, cfg.CoachEnabled())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("CRISISCOACH_JWT_SECRET", "secret")
	t.Setenv("CRISISCOACH_AI_PROVIDER", "Gateway")
	t.Setenv("CRISISCOACH_AI_BASE_URL", "http://gateway.local/v1")
	t.Setenv("CRISISCOACH_OPENAI_API_KEY", "key")
	t.Setenv("CRISISCOACH_AI_TIMEOUT", "3s")
	t.Setenv("CRISISCOACH_QUESTION_SECONDS", "20")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, AIProviderGateway, cfg.AIProvider)
	require.Equal(t, "http://gateway.local/v1", cfg.AIBaseURL)
	require.Equal(t, 3*time.Second, cfg.AITimeout)
	require.Equal(t, 20, cfg.QuestionSeconds)
	require.False(t, cfg.AIJSONMode, "gateways default to plain text replies")
	require.True(t, cfg.CoachEnabled())

	t.Setenv("CRISISCOACH_AI_JSON_MODE", "true")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.AIJSONMode)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CRISISCOACH_JWT_SECRET", "secret")
	t.Setenv("CRISISCOACH_AI_PROVIDER", "gateway")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CRISISCOACH_AI_PROVIDER", "openai")
	t.Setenv("CRISISCOACH_AI_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CRISISCOACH_AI_TIMEOUT", "5s")
	t.Setenv("CRISISCOACH_AI_JSON_MODE", "maybe")
	_, err = Load()
	require.Error(t, err)
}
