package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AI provider names accepted by CRISISCOACH_AI_PROVIDER.
const (
	AIProviderOpenAI  = "openai"
	AIProviderGateway = "gateway"
	AIProviderNone    = "none"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	AIProvider         string
	OpenAIAPIKey       string
	AIBaseURL          string
	AIModel            string
	AITimeout          time.Duration
	AIJSONMode         bool
	QuestionSeconds    int
	SessionTTL         time.Duration
	ReportCacheTTL     time.Duration
	RateLimitPerMinute int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CoachEnabled reports whether answers are sent to a remote model.
func (c Config) CoachEnabled() bool {
	return c.AIProvider != AIProviderNone && c.OpenAIAPIKey != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CRISISCOACH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CrisisCoach API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", AIProviderOpenAI)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "15s")
	v.SetDefault("question_seconds", 30)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("report.cache_ttl", "1m")
	v.SetDefault("rate_limit_per_minute", 30)

	aiTimeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}
	sessionTTL, err := parseDuration(v, "session.ttl")
	if err != nil {
		return Config{}, err
	}
	reportTTL, err := parseDuration(v, "report.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		AIProvider:         strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		AIBaseURL:          v.GetString("ai.base_url"),
		AIModel:            v.GetString("ai.model"),
		AITimeout:          aiTimeout,
		QuestionSeconds:    v.GetInt("question_seconds"),
		SessionTTL:         sessionTTL,
		ReportCacheTTL:     reportTTL,
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.AIProvider {
	case AIProviderOpenAI, AIProviderNone:
	case AIProviderGateway:
		if cfg.AIBaseURL == "" {
			return Config{}, fmt.Errorf("ai base url is required for the gateway provider")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	// JSON mode defaults on for OpenAI itself and off for gateways.
	cfg.AIJSONMode = cfg.AIProvider == AIProviderOpenAI
	if raw := strings.TrimSpace(v.GetString("ai.json_mode")); raw != "" {
		jsonMode, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ai.json_mode: %w", err)
		}
		cfg.AIJSONMode = jsonMode
	}

	if cfg.QuestionSeconds <= 0 {
		cfg.QuestionSeconds = 30
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
