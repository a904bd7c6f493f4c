package config

import (
	"reflect"
	"sort"
	"strings"

	logx "lawly-scheduler/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like the
// database DSN or S3 keys), and (3) a list of task names whose config changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Scheduler
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
			logx.Int("scheduler.queue_size", newCfg.Scheduler.QueueSize),
			logx.String("scheduler.default_timeout", strings.TrimSpace(newCfg.Scheduler.DefaultTimeout)),
			logx.Int("scheduler.history_size", newCfg.Scheduler.HistorySize),
			logx.Int("scheduler.retry_max", newCfg.Scheduler.RetryMax),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	// Database (never log the DSN; it embeds credentials)
	if oldCfg.Database != newCfg.Database {
		changed = append(changed, "database")
		attrs = append(attrs,
			logx.Bool("database.url_set", strings.TrimSpace(newCfg.Database.URL) != ""),
			logx.Int("database.max_conns", newCfg.Database.MaxConns),
			logx.String("database.connect_timeout", strings.TrimSpace(newCfg.Database.ConnectTimeout)),
		)
	}

	// S3 (never log keys)
	if oldCfg.S3 != newCfg.S3 {
		changed = append(changed, "s3")
		attrs = append(attrs,
			logx.String("s3.endpoint", strings.TrimSpace(newCfg.S3.Endpoint)),
			logx.String("s3.region", strings.TrimSpace(newCfg.S3.Region)),
			logx.String("s3.bucket", strings.TrimSpace(newCfg.S3.Bucket)),
			logx.Bool("s3.access_key_set", strings.TrimSpace(newCfg.S3.AccessKeyID) != ""),
			logx.Bool("s3.force_path_style", newCfg.S3.ForcePathStyle),
			logx.Bool("s3.insecure_skip_verify", newCfg.S3.InsecureSkipVerify),
		)
	}

	// Run log (persistence). Nil means disabled.
	oldRL := oldCfg.RunLog
	newRL := newCfg.RunLog
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	var oKeep, nKeep int
	if oldRL != nil {
		oDriver = strings.TrimSpace(oldRL.Driver)
		oBusy = strings.TrimSpace(oldRL.BusyTimeout)
		oPathSet = strings.TrimSpace(oldRL.Path) != ""
		oKeep = oldRL.KeepRuns
	}
	if newRL != nil {
		nDriver = strings.TrimSpace(newRL.Driver)
		nBusy = strings.TrimSpace(newRL.BusyTimeout)
		nPathSet = strings.TrimSpace(newRL.Path) != ""
		nKeep = newRL.KeepRuns
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet || oKeep != nKeep {
		changed = append(changed, "run_log")
		attrs = append(attrs,
			logx.String("run_log.driver", nDriver),
			logx.Bool("run_log.path_set", nPathSet),
			logx.String("run_log.busy_timeout", nBusy),
			logx.Int("run_log.keep_runs", nKeep),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof.Enabled != newCfg.Pprof.Enabled ||
		strings.TrimSpace(oldCfg.Pprof.Addr) != strings.TrimSpace(newCfg.Pprof.Addr) ||
		strings.TrimSpace(oldCfg.Pprof.Prefix) != strings.TrimSpace(newCfg.Pprof.Prefix) ||
		oldCfg.Pprof.AllowInsecure != newCfg.Pprof.AllowInsecure ||
		strings.TrimSpace(oldCfg.Pprof.ReadTimeout) != strings.TrimSpace(newCfg.Pprof.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.WriteTimeout) != strings.TrimSpace(newCfg.Pprof.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.IdleTimeout) != strings.TrimSpace(newCfg.Pprof.IdleTimeout) ||
		oldCfg.Pprof.MutexProfileFraction != newCfg.Pprof.MutexProfileFraction ||
		oldCfg.Pprof.BlockProfileRate != newCfg.Pprof.BlockProfileRate ||
		oldCfg.Pprof.MemProfileRate != newCfg.Pprof.MemProfileRate ||
		(strings.TrimSpace(oldCfg.Pprof.Token) != "") != (strings.TrimSpace(newCfg.Pprof.Token) != "") {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.String("pprof.prefix", strings.TrimSpace(newCfg.Pprof.Prefix)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
			logx.Bool("pprof.allow_insecure", newCfg.Pprof.AllowInsecure),
		)
	}

	// Tasks (summarize only; details at debug)
	tasksChanged := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(tasksChanged) > 0 {
		changed = append(changed, "tasks")
		lr := derefLinkRefresh(newCfg.Tasks.LinkRefresh)
		attrs = append(attrs,
			logx.Int("tasks.changed_count", len(tasksChanged)),
			logx.Bool("tasks.link_refresh_enabled", lr.Enabled == nil || *lr.Enabled),
			logx.String("tasks.link_refresh_schedule", strings.TrimSpace(lr.Schedule)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, tasksChanged
}

func derefLinkRefresh(lr *LinkRefreshConfig) LinkRefreshConfig {
	if lr == nil {
		return LinkRefreshConfig{}
	}
	return *lr
}

func diffTasks(oldT, newT TasksConfig) []string {
	out := make([]string, 0, 1)

	oLR := derefLinkRefresh(oldT.LinkRefresh)
	nLR := derefLinkRefresh(newT.LinkRefresh)
	oPresent := oldT.LinkRefresh != nil
	nPresent := newT.LinkRefresh != nil
	if oPresent != nPresent || !reflect.DeepEqual(oLR, nLR) {
		out = append(out, "link_refresh")
	}

	sort.Strings(out)
	return out
}
