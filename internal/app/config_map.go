package app

import (
	"fmt"
	"strings"
	"time"

	"lawly-scheduler/internal/blob"
	"lawly-scheduler/internal/config"
	"lawly-scheduler/internal/observability/pprof"
	"lawly-scheduler/internal/runlog"
	"lawly-scheduler/internal/scheduler"
	"lawly-scheduler/internal/store"
	"lawly-scheduler/internal/task/linkrefresh"
	logx "lawly-scheduler/pkg/logx"
)

// Mapping functions translate the JSON config into per-component configs.
// They double as validation: the hot-reload validator calls them before a new
// config is committed, so a bad edit never reaches a running component.

const (
	defaultLinkRefreshSchedule = "72h"
	defaultLinkRefreshTimeout  = 30 * time.Minute
	defaultPresignTTL          = 7 * 24 * time.Hour
	defaultHTTPTimeout         = 2 * time.Minute

	// SigV4 rejects presigned URLs valid for more than seven days.
	maxPresignTTL = 7 * 24 * time.Hour
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler
	if sc.Workers < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.workers must be >= 0")
	}
	if sc.QueueSize < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.queue_size must be >= 0")
	}
	if sc.HistorySize < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.history_size must be >= 0")
	}
	if sc.RetryMax < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.retry_max must be >= 0")
	}
	defTimeout, err := config.ParseDurationField("scheduler.default_timeout", sc.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return scheduler.Config{
		Enabled:        sc.Enabled,
		Workers:        sc.Workers,
		QueueSize:      sc.QueueSize,
		DefaultTimeout: defTimeout,
		HistorySize:    sc.HistorySize,
		Timezone:       sc.Timezone,
		RetryMax:       sc.RetryMax,
	}, nil
}

func mapDatabaseConfig(cfg *config.Config) (store.Config, error) {
	dc := cfg.Database
	if dc.MaxConns < 0 {
		return store.Config{}, fmt.Errorf("database.max_conns must be >= 0")
	}
	connectTimeout, err := config.ParseDurationField("database.connect_timeout", dc.ConnectTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		URL:            dc.URL,
		MaxConns:       int32(dc.MaxConns),
		ConnectTimeout: connectTimeout,
	}, nil
}

func mapS3Config(cfg *config.Config) (blob.Config, error) {
	sc := cfg.S3
	if sc.MaxRetries < 0 {
		return blob.Config{}, fmt.Errorf("s3.max_retries must be >= 0")
	}
	requestTimeout, err := config.ParseDurationField("s3.request_timeout", sc.RequestTimeout)
	if err != nil {
		return blob.Config{}, err
	}
	return blob.Config{
		Endpoint:           sc.Endpoint,
		Region:             sc.Region,
		Bucket:             sc.Bucket,
		AccessKeyID:        sc.AccessKeyID,
		SecretAccessKey:    sc.SecretAccessKey,
		ForcePathStyle:     sc.ForcePathStyle,
		InsecureSkipVerify: sc.InsecureSkipVerify,
		RequestTimeout:     requestTimeout,
		MaxRetries:         sc.MaxRetries,
	}, nil
}

func mapRunLogConfig(cfg *config.Config) (runlog.Config, bool, error) {
	if cfg == nil || cfg.RunLog == nil {
		return runlog.Config{}, false, nil
	}
	rc := cfg.RunLog
	driver := strings.TrimSpace(rc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return runlog.Config{}, false, nil
	}
	if rc.KeepRuns < 0 {
		return runlog.Config{}, false, fmt.Errorf("run_log.keep_runs must be >= 0")
	}
	path := strings.TrimSpace(rc.Path)

	switch dl := strings.ToLower(driver); dl {
	case "file":
		return runlog.Config{Driver: "file", Path: path, KeepRuns: rc.KeepRuns}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return runlog.Config{}, false, fmt.Errorf("run_log.path is required when run_log.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("run_log.busy_timeout", rc.BusyTimeout, time.Second)
		if err != nil {
			return runlog.Config{}, false, err
		}
		return runlog.Config{Driver: dl, Path: path, BusyTimeout: busy, KeepRuns: rc.KeepRuns}, true, nil
	default:
		return runlog.Config{}, false, fmt.Errorf("unknown run_log.driver: %s", driver)
	}
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	pc := cfg.Pprof
	readTimeout, err := config.ParseDurationField("pprof.read_timeout", pc.ReadTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	writeTimeout, err := config.ParseDurationField("pprof.write_timeout", pc.WriteTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	idleTimeout, err := config.ParseDurationField("pprof.idle_timeout", pc.IdleTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	if pc.MutexProfileFraction < 0 || pc.BlockProfileRate < 0 || pc.MemProfileRate < 0 {
		return pprof.Config{}, fmt.Errorf("pprof profiling rates must be >= 0")
	}
	return pprof.Config{
		Enabled:              pc.Enabled,
		Addr:                 pc.Addr,
		Prefix:               pc.Prefix,
		Token:                pc.Token,
		AllowInsecure:        pc.AllowInsecure,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MutexProfileFraction: pc.MutexProfileFraction,
		BlockProfileRate:     pc.BlockProfileRate,
		MemProfileRate:       pc.MemProfileRate,
	}, nil
}

// linkRefreshSettings is the effective task wiring after defaults.
type linkRefreshSettings struct {
	enabled    bool
	schedule   string
	timeout    time.Duration
	runOnStart bool
	task       linkrefresh.Config
}

// mapLinkRefreshConfig resolves the tasks.link_refresh section. A nil section
// yields the defaults, so a bare container still refreshes links.
func mapLinkRefreshConfig(cfg *config.Config) (linkRefreshSettings, error) {
	var lr config.LinkRefreshConfig
	if cfg != nil && cfg.Tasks.LinkRefresh != nil {
		lr = *cfg.Tasks.LinkRefresh
	}

	out := linkRefreshSettings{
		enabled:    lr.Enabled == nil || *lr.Enabled,
		runOnStart: lr.RunOnStart == nil || *lr.RunOnStart,
		schedule:   strings.TrimSpace(lr.Schedule),
	}
	if out.schedule == "" {
		out.schedule = defaultLinkRefreshSchedule
	}
	if _, err := scheduler.ParseSchedule(out.schedule); err != nil {
		return linkRefreshSettings{}, fmt.Errorf("tasks.link_refresh.schedule: %w", err)
	}

	timeout, err := config.ParseDurationOrDefault("tasks.link_refresh.timeout", lr.Timeout, defaultLinkRefreshTimeout)
	if err != nil {
		return linkRefreshSettings{}, err
	}
	presignTTL, err := config.ParseDurationOrDefault("tasks.link_refresh.presign_ttl", lr.PresignTTL, defaultPresignTTL)
	if err != nil {
		return linkRefreshSettings{}, err
	}
	if presignTTL > maxPresignTTL {
		return linkRefreshSettings{}, fmt.Errorf("tasks.link_refresh.presign_ttl: must be <= %s", maxPresignTTL)
	}
	httpTimeout, err := config.ParseDurationOrDefault("tasks.link_refresh.http_timeout", lr.HTTPTimeout, defaultHTTPTimeout)
	if err != nil {
		return linkRefreshSettings{}, err
	}
	if lr.RatePerSec < 0 {
		return linkRefreshSettings{}, fmt.Errorf("tasks.link_refresh.rate_per_sec must be >= 0")
	}

	out.timeout = timeout
	out.task = linkrefresh.Config{
		PresignTTL:  presignTTL,
		HTTPTimeout: httpTimeout,
		RatePerSec:  lr.RatePerSec,
		// Re-downloads hit the same store the presigned links point at.
		InsecureSkipVerify: cfg != nil && cfg.S3.InsecureSkipVerify,
		DryRun:             lr.DryRun,
	}
	return out, nil
}
