package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	Detector        string
	PhraseCatalog   string
	DataDir         string
	SurveyMaxItems  int
	SessionTTL      time.Duration
	RequireSurvey   bool
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	RedisURL        string
	CacheTTL        time.Duration
	APIToken        string
	CORSOrigins     []string
	SlackBotToken   string
	SlackChannel    string
}

func Load() Config {
	return Config{
		Port:            envInt("CONFIDE_PORT", 8760),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("CONFIDE_MODEL", "claude-sonnet-4-20250514"),
		Detector:        envStr("CONFIDE_DETECTOR", "llm"),
		PhraseCatalog:   envStr("PHRASE_CATALOG", "data/known_phrases.csv"),
		DataDir:         envStr("DATA_DIR", "data/responses"),
		SurveyMaxItems:  envInt("SURVEY_MAX_ITEMS", 6),
		SessionTTL:      time.Duration(envInt("SESSION_TTL_MINUTES", 180)) * time.Minute,
		RequireSurvey:   envBool("REQUIRE_EXPERIENCE_SURVEY", true),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		MongoURI:        envStr("MONGO_URI", ""),
		MongoDatabase:   envStr("MONGO_DATABASE", "feedback"),
		RedisURL:        envStr("REDIS_URL", ""),
		CacheTTL:        time.Duration(envInt("DETECTION_CACHE_TTL_HOURS", 24)) * time.Hour,
		APIToken:        envStr("CONFIDE_API_TOKEN", ""),
		CORSOrigins:     envList("CORS_ORIGINS"),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
