package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/achievements/internal/flagx"
	"github.com/dmitrijs2005/achievements/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration, which accepts both "1s" strings and integer
// nanoseconds. Pointer fields distinguish "absent" from "zero" so that a
// partial file only overrides what it names.
type JsonConfig struct {
	StoreBackend    string          `json:"store_backend"`
	DatabaseDSN     string          `json:"database_dsn"`
	MongoURI        string          `json:"mongo_uri"`
	MongoDatabase   string          `json:"mongo_database"`
	StoreTimeout    *timex.Duration `json:"store_timeout"`
	SecretKey       string          `json:"secret_key"`
	TokenValidity   *timex.Duration `json:"token_validity"`
	EventID         string          `json:"event_id"`
	SessionFeedURL  string          `json:"session_feed_url"`
	SeedSchedule    *string         `json:"seed_schedule"`
	SeedValidity    *timex.Duration `json:"seed_validity"`
	SeedConcurrency *int            `json:"seed_concurrency"`
	FeedMaxRetries  *int            `json:"feed_max_retries"`
	ImageBaseURL    string          `json:"image_base_url"`
	CheckImages     *bool           `json:"check_images"`
	S3RootUser      string          `json:"s3_root_user"`
	S3RootPassword  string          `json:"s3_root_password"`
	S3Bucket        string          `json:"s3_bucket"`
	S3Region        string          `json:"s3_region"`
	S3BaseEndpoint  string          `json:"s3_base_endpoint"`
	RedisAddr       *string         `json:"redis_addr"`
	RedisPassword   *string         `json:"redis_password"`
	LockTTL         *timex.Duration `json:"lock_ttl"`
	LogLevel        string          `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags. If neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.TokenValidity, c.TokenValidity)
	setString(&config.EventID, c.EventID)
	setString(&config.SessionFeedURL, c.SessionFeedURL)
	setPtr(&config.SeedSchedule, c.SeedSchedule)
	setDuration(&config.SeedValidity, c.SeedValidity)
	setPtr(&config.SeedConcurrency, c.SeedConcurrency)
	setPtr(&config.FeedMaxRetries, c.FeedMaxRetries)
	setString(&config.ImageBaseURL, c.ImageBaseURL)
	setPtr(&config.CheckImages, c.CheckImages)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setPtr(&config.RedisAddr, c.RedisAddr)
	setPtr(&config.RedisPassword, c.RedisPassword)
	setDuration(&config.LockTTL, c.LockTTL)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
