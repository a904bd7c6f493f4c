package config

import (
	"os"
	"strings"
)

// Environment variables recognized by the scheduler. They override the
// corresponding config file fields, so secrets can stay out of the file and
// deployments can run with environment alone.
const (
	EnvDatabaseURL     = "DATABASE_URL"
	EnvS3Endpoint      = "S3_ENDPOINT"
	EnvS3Region        = "S3_REGION"
	EnvS3Bucket        = "S3_BUCKET_NAME"
	EnvS3AccessKeyID   = "S3_ACCESS_KEY_ID"
	EnvS3SecretKey     = "S3_SECRET_ACCESS_KEY"
	EnvLogLevel        = "LOG_LEVEL"
	EnvTimezone        = "TZ"
)

// ApplyEnv overlays environment variables onto cfg. Set variables win over
// file values; unset variables leave the file values alone.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v, ok := lookup(EnvDatabaseURL); ok {
		cfg.Database.URL = v
	}
	if v, ok := lookup(EnvS3Endpoint); ok {
		cfg.S3.Endpoint = v
	}
	if v, ok := lookup(EnvS3Region); ok {
		cfg.S3.Region = v
	}
	if v, ok := lookup(EnvS3Bucket); ok {
		cfg.S3.Bucket = v
	}
	if v, ok := lookup(EnvS3AccessKeyID); ok {
		cfg.S3.AccessKeyID = v
	}
	if v, ok := lookup(EnvS3SecretKey); ok {
		cfg.S3.SecretAccessKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	// TZ is a fallback only: an explicit scheduler.timezone wins.
	if strings.TrimSpace(cfg.Scheduler.Timezone) == "" {
		if v, ok := lookup(EnvTimezone); ok {
			cfg.Scheduler.Timezone = v
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}
