package app

import (
	"strings"
	"testing"
	"time"

	"lawly-scheduler/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestMapRunLogConfig(t *testing.T) {
	if _, enabled, err := mapRunLogConfig(&config.Config{}); err != nil || enabled {
		t.Fatalf("nil section: enabled=%v err=%v", enabled, err)
	}

	cfg := &config.Config{RunLog: &config.RunLogConfig{Driver: "none"}}
	if _, enabled, err := mapRunLogConfig(cfg); err != nil || enabled {
		t.Fatalf("driver none: enabled=%v err=%v", enabled, err)
	}

	cfg = &config.Config{RunLog: &config.RunLogConfig{Driver: "file", Path: "./runs", KeepRuns: 100}}
	rc, enabled, err := mapRunLogConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("file driver: enabled=%v err=%v", enabled, err)
	}
	if rc.Driver != "file" || rc.Path != "./runs" || rc.KeepRuns != 100 {
		t.Fatalf("file config mapped wrong: %+v", rc)
	}

	cfg = &config.Config{RunLog: &config.RunLogConfig{Driver: "sqlite"}}
	if _, _, err := mapRunLogConfig(cfg); err == nil {
		t.Fatal("sqlite without path should error")
	}

	cfg = &config.Config{RunLog: &config.RunLogConfig{Driver: "sqlite", Path: "./runs.db", BusyTimeout: "3s"}}
	rc, enabled, err = mapRunLogConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite driver: enabled=%v err=%v", enabled, err)
	}
	if rc.BusyTimeout != 3*time.Second {
		t.Fatalf("busy timeout = %v, want 3s", rc.BusyTimeout)
	}

	cfg = &config.Config{RunLog: &config.RunLogConfig{Driver: "redis", Path: "x"}}
	if _, _, err := mapRunLogConfig(cfg); err == nil {
		t.Fatal("unknown driver should error")
	}

	cfg = &config.Config{RunLog: &config.RunLogConfig{Driver: "file", KeepRuns: -1}}
	if _, _, err := mapRunLogConfig(cfg); err == nil {
		t.Fatal("negative keep_runs should error")
	}
}

func TestMapLinkRefreshConfigDefaults(t *testing.T) {
	set, err := mapLinkRefreshConfig(&config.Config{})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if !set.enabled || !set.runOnStart {
		t.Fatalf("defaults should enable the task and run-on-start: %+v", set)
	}
	if set.schedule != "72h" {
		t.Fatalf("schedule = %q, want 72h", set.schedule)
	}
	if set.timeout != 30*time.Minute {
		t.Fatalf("timeout = %v, want 30m", set.timeout)
	}
	if set.task.PresignTTL != 7*24*time.Hour {
		t.Fatalf("presign ttl = %v, want 168h", set.task.PresignTTL)
	}
	if set.task.HTTPTimeout != 2*time.Minute {
		t.Fatalf("http timeout = %v, want 2m", set.task.HTTPTimeout)
	}
	if set.task.RatePerSec != 0 || set.task.DryRun {
		t.Fatalf("unexpected task defaults: %+v", set.task)
	}
}

func TestMapLinkRefreshConfigExplicit(t *testing.T) {
	cfg := &config.Config{
		S3: config.S3Config{InsecureSkipVerify: true},
		Tasks: config.TasksConfig{
			LinkRefresh: &config.LinkRefreshConfig{
				Enabled:     boolPtr(true),
				Schedule:    "0 4 * * *",
				Timeout:     "10m",
				PresignTTL:  "24h",
				RatePerSec:  25,
				HTTPTimeout: "30s",
				RunOnStart:  boolPtr(false),
				DryRun:      true,
			},
		},
	}
	set, err := mapLinkRefreshConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if set.schedule != "0 4 * * *" || set.timeout != 10*time.Minute || set.runOnStart {
		t.Fatalf("settings mapped wrong: %+v", set)
	}
	want := set.task
	if want.PresignTTL != 24*time.Hour || want.HTTPTimeout != 30*time.Second ||
		want.RatePerSec != 25 || !want.DryRun || !want.InsecureSkipVerify {
		t.Fatalf("task config mapped wrong: %+v", want)
	}
}

func TestMapLinkRefreshConfigRejects(t *testing.T) {
	cases := []struct {
		name string
		lr   config.LinkRefreshConfig
		want string
	}{
		{"bad schedule", config.LinkRefreshConfig{Schedule: "not a schedule"}, "schedule"},
		{"bad timeout", config.LinkRefreshConfig{Timeout: "soon"}, "timeout"},
		{"presign over sigv4 limit", config.LinkRefreshConfig{PresignTTL: "169h"}, "presign_ttl"},
		{"negative rate", config.LinkRefreshConfig{RatePerSec: -1}, "rate_per_sec"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			lr := c.lr
			cfg := &config.Config{Tasks: config.TasksConfig{LinkRefresh: &lr}}
			_, err := mapLinkRefreshConfig(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestMapLinkRefreshConfigDisabled(t *testing.T) {
	cfg := &config.Config{
		Tasks: config.TasksConfig{LinkRefresh: &config.LinkRefreshConfig{Enabled: boolPtr(false)}},
	}
	set, err := mapLinkRefreshConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if set.enabled {
		t.Fatal("explicit false should disable the task")
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		Enabled:        true,
		Workers:        4,
		QueueSize:      64,
		DefaultTimeout: "1m",
		HistorySize:    50,
		RetryMax:       2,
		Timezone:       "Europe/Moscow",
	}}
	sc, err := mapSchedulerConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if sc.Workers != 4 || sc.QueueSize != 64 || sc.DefaultTimeout != time.Minute ||
		sc.HistorySize != 50 || sc.RetryMax != 2 || sc.Timezone != "Europe/Moscow" {
		t.Fatalf("mapped wrong: %+v", sc)
	}

	bad := []config.SchedulerConfig{
		{Workers: -1},
		{QueueSize: -1},
		{HistorySize: -1},
		{RetryMax: -1},
		{DefaultTimeout: "never"},
		{Timezone: "Mars/Olympus"},
	}
	for _, b := range bad {
		if _, err := mapSchedulerConfig(&config.Config{Scheduler: b}); err == nil {
			t.Errorf("config %+v should be rejected", b)
		}
	}
}

func TestMapPprofConfig(t *testing.T) {
	cfg := &config.Config{Pprof: config.PprofConfig{
		Enabled:     true,
		Addr:        "127.0.0.1:6060",
		ReadTimeout: "5s",
	}}
	pc, err := mapPprofConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !pc.Enabled || pc.Addr != "127.0.0.1:6060" || pc.ReadTimeout != 5*time.Second {
		t.Fatalf("mapped wrong: %+v", pc)
	}

	if _, err := mapPprofConfig(&config.Config{Pprof: config.PprofConfig{ReadTimeout: "fast"}}); err == nil {
		t.Fatal("bad duration should be rejected")
	}
	if _, err := mapPprofConfig(&config.Config{Pprof: config.PprofConfig{BlockProfileRate: -1}}); err == nil {
		t.Fatal("negative profile rate should be rejected")
	}
}

func TestMapDatabaseAndS3Config(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{URL: "postgres://u:p@h/db", MaxConns: 8, ConnectTimeout: "10s"},
		S3: config.S3Config{
			Endpoint:       "https://s3.lawly.ru",
			Region:         "ru-central1",
			Bucket:         "lawly-templates",
			ForcePathStyle: true,
			RequestTimeout: "45s",
			MaxRetries:     5,
		},
	}

	dc, err := mapDatabaseConfig(cfg)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	if dc.URL != cfg.Database.URL || dc.MaxConns != 8 || dc.ConnectTimeout != 10*time.Second {
		t.Fatalf("database mapped wrong: %+v", dc)
	}

	sc, err := mapS3Config(cfg)
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if sc.Endpoint != cfg.S3.Endpoint || sc.Bucket != "lawly-templates" ||
		!sc.ForcePathStyle || sc.RequestTimeout != 45*time.Second || sc.MaxRetries != 5 {
		t.Fatalf("s3 mapped wrong: %+v", sc)
	}

	if _, err := mapDatabaseConfig(&config.Config{Database: config.DatabaseConfig{MaxConns: -1}}); err == nil {
		t.Fatal("negative max_conns should be rejected")
	}
	if _, err := mapS3Config(&config.Config{S3: config.S3Config{MaxRetries: -1}}); err == nil {
		t.Fatal("negative max_retries should be rejected")
	}
}
