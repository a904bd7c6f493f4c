package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Database  DatabaseConfig  `json:"database"`
	S3        S3Config        `json:"s3"`
	RunLog    *RunLogConfig   `json:"run_log,omitempty"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
	Tasks     TasksConfig     `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the scheduler service.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - history_size: 200
//   - retry_max: 3
//   - timezone: $TZ, else UTC
type SchedulerConfig struct {
	Enabled   bool `json:"enabled"`
	Workers   int  `json:"workers,omitempty"`
	QueueSize int  `json:"queue_size,omitempty"`

	// DefaultTimeout is a Go duration string (e.g. "10s", "1m").
	// Use "0s" to disable a global default timeout.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
	RetryMax    int `json:"retry_max,omitempty"`

	// Trigger timezone (IANA name). Falls back to $TZ when empty.
	Timezone string `json:"timezone,omitempty"`
}

// DatabaseConfig points at the platform Postgres.
//
// URL is usually supplied via DATABASE_URL rather than the config file.
type DatabaseConfig struct {
	URL            string `json:"url,omitempty"`
	MaxConns       int    `json:"max_conns,omitempty"`
	ConnectTimeout string `json:"connect_timeout,omitempty"` // Go duration string
}

// S3Config points at the object store holding template files.
//
// Credentials are usually supplied via S3_ACCESS_KEY_ID / S3_SECRET_ACCESS_KEY
// rather than the config file. Endpoint is optional; when set it overrides the
// AWS default (self-hosted stores).
type S3Config struct {
	Endpoint        string `json:"endpoint,omitempty"`
	Region          string `json:"region,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`

	// ForcePathStyle addresses objects as host/bucket/key instead of
	// bucket.host/key. Most self-hosted stores need this.
	ForcePathStyle bool `json:"force_path_style,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification for the
	// endpoint. Only for stores with self-signed certificates.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`

	RequestTimeout string `json:"request_timeout,omitempty"` // Go duration string
	MaxRetries     int    `json:"max_retries,omitempty"`
}

// RunLogConfig controls the optional persistent record of task runs.
//
// Example:
//
//	"run_log": { "driver": "file", "path": "./scheduler_runs" }
type RunLogConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// KeepRuns bounds how many runs are retained per task (0 = driver default).
	KeepRuns int `json:"keep_runs,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MemProfileRate       int `json:"mem_profile_rate,omitempty"`
}

type TasksConfig struct {
	// LinkRefresh refreshes presigned template links. A nil section means
	// enabled with defaults, so the container runs useful work out of the box.
	LinkRefresh *LinkRefreshConfig `json:"link_refresh,omitempty"`
}

// LinkRefreshConfig controls the template link refresh task.
//
// All durations are Go duration strings. Schedule also accepts cron
// expressions and "HH:MM" intervals (see scheduler.ParseSchedule).
//
// Enabled and RunOnStart are pointers so an omitted field can default to true
// while an explicit false still turns the behavior off.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - schedule: "72h"
//   - timeout: "30m"
//   - presign_ttl: "168h"
//   - rate_per_sec: 0 (unlimited)
//   - http_timeout: "2m"
//   - run_on_start: true
type LinkRefreshConfig struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Schedule   string `json:"schedule,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	PresignTTL string `json:"presign_ttl,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`

	// HTTPTimeout bounds the re-download of a missing object's source URL.
	HTTPTimeout string `json:"http_timeout,omitempty"`

	RunOnStart *bool `json:"run_on_start,omitempty"`

	// DryRun computes and logs what would change without writing anything.
	DryRun bool `json:"dry_run,omitempty"`
}
