package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	RiotAPIKey string
	RiotRegion string
	DBPath     string
	ServerPort string
	LogLevel   string
	CacheTTL   time.Duration

	DiscordToken     string
	DiscordChannelID string
	DiscordGuildID   string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// external API rate limits (requests per window)
	ShortLimitCount  int
	ShortLimitWindow time.Duration
	LongLimitCount   int
	LongLimitWindow  time.Duration

	SweepInterval       time.Duration
	RankSyncInterval    time.Duration
	ExpirySweepInterval time.Duration
	SweepMatchCount     int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:  getEnv("RIOT_API_KEY", ""),
		RiotRegion:  getEnv("RIOT_REGION", "americas"),
		DBPath:      getEnv("DB_PATH", "riftbot.db"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CacheTTL:    5 * time.Minute,

		DiscordToken:     getEnv("DISCORD_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
		DiscordGuildID:   getEnv("DISCORD_GUILD_ID", ""),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),

		ShortLimitCount:  getEnvInt("RIOT_SHORT_LIMIT", 20),
		ShortLimitWindow: 1 * time.Second,
		LongLimitCount:   getEnvInt("RIOT_LONG_LIMIT", 100),
		LongLimitWindow:  2 * time.Minute,

		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", 2*time.Minute),
		RankSyncInterval:    getEnvDuration("RANK_SYNC_INTERVAL", 30*time.Minute),
		ExpirySweepInterval: getEnvDuration("EXPIRY_SWEEP_INTERVAL", 1*time.Minute),
		SweepMatchCount:     getEnvInt("SWEEP_MATCH_COUNT", 5),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("riot_region", cfg.RiotRegion).
		Dur("sweep_interval", cfg.SweepInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
