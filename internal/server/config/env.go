package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "ACHIEVEMENTS_"

// dotenvFiles lists the files loaded into the environment before lookup.
// Variables already set in the environment win.
var dotenvFiles = []string{".env"}

// parseEnv overlays Config fields from ACHIEVEMENTS_* environment variables.
// Durations use time.ParseDuration syntax ("5s", "168h"). Malformed values
// panic, like a malformed JSON file does.
func parseEnv(config *Config) {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				panic(err)
			}
		}
	}

	envString("STORE_BACKEND", &config.StoreBackend)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("MONGO_URI", &config.MongoURI)
	envString("MONGO_DATABASE", &config.MongoDatabase)
	envDuration("STORE_TIMEOUT", &config.StoreTimeout)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("TOKEN_VALIDITY", &config.TokenValidity)
	envString("EVENT_ID", &config.EventID)
	envString("SESSION_FEED_URL", &config.SessionFeedURL)
	envString("SEED_SCHEDULE", &config.SeedSchedule)
	envDuration("SEED_VALIDITY", &config.SeedValidity)
	envInt("SEED_CONCURRENCY", &config.SeedConcurrency)
	envInt("FEED_MAX_RETRIES", &config.FeedMaxRetries)
	envString("IMAGE_BASE_URL", &config.ImageBaseURL)
	envBool("CHECK_IMAGES", &config.CheckImages)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("REDIS_ADDR", &config.RedisAddr)
	envString("REDIS_PASSWORD", &config.RedisPassword)
	envDuration("LOCK_TTL", &config.LockTTL)
	envString("LOG_LEVEL", &config.LogLevel)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		*dst = b
	}
}
