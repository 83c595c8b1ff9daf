package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	PublishEventsTopic  string
	ChallengeCodesTopic string

	// Discovery / research vendor
	ResearchBaseURL           string
	ResearchAPIKey            string
	ResearchOAuthClientID     string
	ResearchOAuthClientSecret string
	ResearchOAuthTokenURL     string
	ResearchTimeout           time.Duration
	DiscoveryMaxCandidates    int

	// Website content extraction
	ScraperBaseURL string
	ScraperAPIKey  string
	ScraperTimeout time.Duration

	// Object storage
	StorageBaseURL   string
	StorageAPIKey    string
	StorageBucket    string
	StoragePublicURL string

	// Image pipeline
	ImagePolicyPath    string
	ImageMaxPerListing int
	ImageFetchDelay    time.Duration

	// Response cache
	CacheDiscoveryTTL time.Duration
	CacheResearchTTL  time.Duration

	// Publishing
	PublishWebhookURL string
	PublishChannels   []string
	SiteBaseURL       string

	// Session client
	SocialBaseURL        string
	SocialTimeout        time.Duration
	SocialUsername       string
	SocialPassword       string
	ChallengePollEvery   time.Duration
	ChallengeWaitTimeout time.Duration
	SessionLockTTL       time.Duration

	// Task queue
	TaskMaxAttempts int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 120*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "vows"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "vows123"),
		PostgresDB:       getEnv("POSTGRES_DB", "vows_social"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "vows-social-pipeline"),
		PublishEventsTopic:  getEnv("PUBLISH_EVENTS_TOPIC", "listing.published"),
		ChallengeCodesTopic: getEnv("CHALLENGE_CODES_TOPIC", "session.challenge-codes"),

		ResearchBaseURL:           getEnv("RESEARCH_BASE_URL", "https://api.research.example.com"),
		ResearchAPIKey:            getEnv("RESEARCH_API_KEY", ""),
		ResearchOAuthClientID:     getEnv("RESEARCH_OAUTH_CLIENT_ID", ""),
		ResearchOAuthClientSecret: getEnv("RESEARCH_OAUTH_CLIENT_SECRET", ""),
		ResearchOAuthTokenURL:     getEnv("RESEARCH_OAUTH_TOKEN_URL", ""),
		ResearchTimeout:           getDuration("RESEARCH_TIMEOUT", 90*time.Second),
		DiscoveryMaxCandidates:    getIntEnv("DISCOVERY_MAX_CANDIDATES", 10),

		ScraperBaseURL: getEnv("SCRAPER_BASE_URL", "https://api.scraper.example.com"),
		ScraperAPIKey:  getEnv("SCRAPER_API_KEY", ""),
		ScraperTimeout: getDuration("SCRAPER_TIMEOUT", 60*time.Second),

		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:9000"),
		StorageAPIKey:    getEnv("STORAGE_API_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "listing-images"),
		StoragePublicURL: getEnv("STORAGE_PUBLIC_URL", "http://localhost:9000/public"),

		ImagePolicyPath:    getEnv("IMAGE_POLICY_PATH", ""),
		ImageMaxPerListing: getIntEnv("IMAGE_MAX_PER_LISTING", 12),
		ImageFetchDelay:    getDuration("IMAGE_FETCH_DELAY", 500*time.Millisecond),

		CacheDiscoveryTTL: getDuration("CACHE_DISCOVERY_TTL", 12*time.Hour),
		CacheResearchTTL:  getDuration("CACHE_RESEARCH_TTL", 7*24*time.Hour),

		PublishWebhookURL: getEnv("PUBLISH_WEBHOOK_URL", ""),
		PublishChannels:   getStringSliceEnv("PUBLISH_CHANNELS", []string{"webhook", "events"}),
		SiteBaseURL:       getEnv("SITE_BASE_URL", "https://vows.social"),

		SocialBaseURL:        getEnv("SOCIAL_BASE_URL", "https://i.social.example.com"),
		SocialTimeout:        getDuration("SOCIAL_TIMEOUT", 60*time.Second),
		SocialUsername:       getEnv("SOCIAL_USERNAME", ""),
		SocialPassword:       getEnv("SOCIAL_PASSWORD", ""),
		ChallengePollEvery:   getDuration("CHALLENGE_POLL_EVERY", 2*time.Second),
		ChallengeWaitTimeout: getDuration("CHALLENGE_WAIT_TIMEOUT", 120*time.Second),
		SessionLockTTL:       getDuration("SESSION_LOCK_TTL", 5*time.Minute),

		TaskMaxAttempts: getIntEnv("TASK_MAX_ATTEMPTS", 3),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
