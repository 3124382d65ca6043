package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/achievements/internal/flagx"
)

var shortFlags = []string{
	"-k", "-d", "-m", "-n", "-t", "-s", "-v", "-f", "-x", "-w", "-l", "-i",
	"-u", "-p", "-b", "-g", "-e", "-r",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-k string   store backend (postgres, mongo, memory)
//	-d string   PostgreSQL DSN
//	-m string   MongoDB URI
//	-n string   MongoDB database
//	-t int      store call timeout, seconds
//	-s string   JWT HMAC secret key
//	-v string   event id to seed
//	-f string   session feed URL
//	-x string   seeding cron schedule (e.g. "@every 1h")
//	-w int      validity of seeded achievements, hours
//	-l int      seeding concurrency
//	-i string   badge image base URL
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-r string   Redis address for the seeding lock
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], shortFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.StoreBackend, "k", config.StoreBackend, "store backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "mongo URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "mongo database")
	storeTimeout := fs.Int("t", int(config.StoreTimeout.Seconds()), "store timeout (in seconds)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.EventID, "v", config.EventID, "event id")
	fs.StringVar(&config.SessionFeedURL, "f", config.SessionFeedURL, "session feed URL")
	fs.StringVar(&config.SeedSchedule, "x", config.SeedSchedule, "seed cron schedule")
	seedValidity := fs.Int("w", int(config.SeedValidity.Hours()), "seeded achievement validity (in hours)")
	fs.IntVar(&config.SeedConcurrency, "l", config.SeedConcurrency, "seed concurrency")
	fs.StringVar(&config.ImageBaseURL, "i", config.ImageBaseURL, "image base URL")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.StoreTimeout = time.Duration(*storeTimeout) * time.Second
	config.SeedValidity = time.Duration(*seedValidity) * time.Hour
}
