package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lawly-scheduler/internal/blob"
	"lawly-scheduler/internal/config"
	"lawly-scheduler/internal/eventbus"
	"lawly-scheduler/internal/observability/pprof"
	"lawly-scheduler/internal/runlog"
	"lawly-scheduler/internal/runtime/supervisor"
	"lawly-scheduler/internal/scheduler"
	"lawly-scheduler/internal/store"
	"lawly-scheduler/internal/task/linkrefresh"
	logx "lawly-scheduler/pkg/logx"
	"lawly-scheduler/pkg/systemd"
)

// App wires config, logging, storage and the scheduler into one process.
type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	pool      *pgxpool.Pool
	templates *store.TemplateRepo
	objects   *blob.Client
	runs      runlog.Store

	sched *scheduler.Service
	prof  *pprof.Service
}

// NewApp loads config and connects to the database and object store.
// Both connections are verified here so bad credentials fail the deploy
// instead of the first scheduled run.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Resolve all component configs up front; a mapping error should not
	// leave half-initialized connections behind.
	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	profCfg, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	dbCfg, err := mapDatabaseConfig(cfg)
	if err != nil {
		return nil, err
	}
	s3Cfg, err := mapS3Config(cfg)
	if err != nil {
		return nil, err
	}
	rlCfg, rlEnabled, err := mapRunLogConfig(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := mapLinkRefreshConfig(cfg); err != nil {
		return nil, err
	}

	objects, err := blob.New(ctx, s3Cfg)
	if err != nil {
		return nil, err
	}
	if err := objects.Ping(ctx); err != nil {
		return nil, err
	}

	pool, err := store.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	var runs runlog.Store
	if rlEnabled {
		runs, err = runlog.Open(rlCfg, log.With(logx.String("comp", "runlog")))
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("run log enabled", logx.String("driver", rlCfg.Driver))
		// Surface the previous outcome across restarts; the in-memory
		// scheduler history starts empty.
		if last, lerr := runs.Recent(ctx, linkrefresh.Name, 1); lerr == nil && len(last) == 1 {
			log.Info("previous run",
				logx.String("task", last[0].Task),
				logx.Time("at", last[0].At),
				logx.Bool("ok", last[0].OK),
			)
		}
	}

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		pool:      pool,
		templates: store.NewTemplateRepo(pool),
		objects:   objects,
		runs:      runs,
		sched:     scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus),
		prof:      pprof.New(profCfg, log.With(logx.String("comp", "pprof"))),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		// Database and S3 changes need a restart, but reject unparseable
		// values anyway so the warning never hides a typo.
		if _, err := mapDatabaseConfig(cfg); err != nil {
			return err
		}
		if _, err := mapS3Config(cfg); err != nil {
			return err
		}
		if _, _, err := mapRunLogConfig(cfg); err != nil {
			return err
		}
		if _, err := mapPprofConfig(cfg); err != nil {
			return err
		}
		if _, err := mapLinkRefreshConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	cfg := a.cfgm.Get()

	// Register tasks before the scheduler starts so run-at-start fires once
	// the worker pool is up.
	if err := a.applyLinkRefresh(cfg); err != nil {
		return err
	}

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
		for _, it := range a.sched.Snapshot().Schedules {
			a.log.Info("schedule registered",
				logx.String("task", it.Name),
				logx.String("spec", it.Spec),
				logx.Time("next", it.Next),
			)
		}
	} else {
		a.log.Warn("scheduler disabled; no tasks will run")
	}

	// Reconfigure (not Start) so runtime profiling rates apply even while
	// the server stays disabled.
	if pc, err := mapPprofConfig(cfg); err == nil {
		a.prof.Reconfigure(a.sup.Context(), pc)
	}

	a.startEventLog()
	a.startReloadLoop()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// systemd integration; every call is a no-op outside a Type=notify unit.
	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			systemd.RunWatchdog(c, iv)
		})
	}
	systemd.NotifyReady()
	systemd.NotifyStatus("running")

	a.log.Info("app started", a.startupFields(cfg)...)
	return nil
}

func (a *App) startupFields(cfg *config.Config) []logx.Field {
	fields := []logx.Field{
		logx.String("config", a.cfgPath),
		logx.String("tz", strings.TrimSpace(cfg.Scheduler.Timezone)),
		logx.String("bucket", strings.TrimSpace(cfg.S3.Bucket)),
		logx.Bool("run_log", a.runs != nil),
		logx.Bool("pprof", cfg.Pprof.Enabled),
	}
	if set, err := mapLinkRefreshConfig(cfg); err == nil {
		fields = append(fields,
			logx.Bool("link_refresh", set.enabled),
			logx.String("schedule", set.schedule),
			logx.Bool("dry_run", set.task.DryRun),
		)
	}
	return fields
}

// startEventLog mirrors task lifecycle events into debug logs. Components log
// their own outcomes; this exists to correlate bus traffic when debugging.
func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				fields := []logx.Field{logx.String("type", e.Type)}
				if te, ok := e.Data.(eventbus.TaskEvent); ok {
					fields = append(fields, logx.String("task", te.Task))
					if te.Duration > 0 {
						fields = append(fields, logx.Duration("dur", te.Duration))
					}
					if te.Attempts > 0 {
						fields = append(fields, logx.Int("attempts", te.Attempts))
					}
					if te.Err != "" {
						fields = append(fields, logx.String("err", te.Err))
					}
				}
				a.log.Debug("event", fields...)
			}
		}
	})
}

// startReloadLoop applies hot-reloaded configs published by the watcher.
func (a *App) startReloadLoop() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, tasksChanged := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	// Connections are built once at startup.
	for _, s := range sections {
		switch s {
		case "database", "s3", "run_log":
			a.log.Warn("section changed; restart required to take effect", logx.String("section", s))
		}
	}

	// Logging first so later messages obey the new level.
	a.logs.Apply(mapLogConfig(newCfg))

	// Scheduler (live): timezone changes restart cron, enable flag cycles the pool.
	prevEnabled := a.sched.Enabled()
	if schedCfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(schedCfg)
		if prevEnabled && !schedCfg.Enabled {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		} else if !prevEnabled && schedCfg.Enabled {
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}

	// Task wiring (schedule, timeout, task knobs).
	for _, name := range tasksChanged {
		if name != "link_refresh" {
			continue
		}
		if err := a.applyLinkRefresh(newCfg); err != nil {
			a.log.Warn("invalid link_refresh config; keeping previous", logx.Err(err))
		}
	}

	// pprof (live).
	if pc, err := mapPprofConfig(newCfg); err != nil {
		a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
	} else {
		a.prof.Reconfigure(ctx, pc)
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	systemd.NotifyStopping()

	// Cancel the run context first so background loops and in-flight task
	// runs start unwinding immediately.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it
			// doesn't, log a leak signal and observe the late finish.
			elapsed := time.Since(start)
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", elapsed),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Scheduler first so no new runs start, then the rest in dependency order.
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("pprof", time.Second, func(c context.Context) error { a.prof.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("runlog", time.Second, func(context.Context) error {
		if a.runs != nil {
			return a.runs.Close()
		}
		return nil
	})
	step("database", 2*time.Second, func(context.Context) error { a.pool.Close(); return nil })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
