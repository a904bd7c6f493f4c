package app

import (
	"context"
	"encoding/json"
	"time"

	"lawly-scheduler/internal/config"
	"lawly-scheduler/internal/runlog"
	"lawly-scheduler/internal/scheduler"
	"lawly-scheduler/internal/task/linkrefresh"
	logx "lawly-scheduler/pkg/logx"
)

// applyLinkRefresh builds the runner from cfg and upserts its schedule.
// A disabled section removes the schedule instead. Safe to call again on
// hot-reload; registration is an upsert by task name.
func (a *App) applyLinkRefresh(cfg *config.Config) error {
	set, err := mapLinkRefreshConfig(cfg)
	if err != nil {
		return err
	}
	if !set.enabled {
		if a.sched.Remove(linkrefresh.Name) {
			a.log.Info("task disabled", logx.String("task", linkrefresh.Name))
		}
		return nil
	}

	runner := linkrefresh.New(set.task,
		a.log.With(logx.String("comp", "linkrefresh")),
		a.templates, a.objects)

	job := func(ctx context.Context) error {
		start := time.Now()
		rep, err := runner.Run(ctx)
		a.recordRun(start, linkrefresh.Name, rep, err)
		return err
	}

	_, err = a.sched.AddScheduleOpt(linkrefresh.Name, set.schedule, set.timeout, scheduler.TaskOptions{
		Overlap:    scheduler.OverlapSkipIfRunning,
		RunAtStart: set.runOnStart,
	}, job)
	if err != nil {
		return err
	}

	a.log.Info("task registered",
		logx.String("task", linkrefresh.Name),
		logx.String("schedule", set.schedule),
		logx.Duration("timeout", set.timeout),
		logx.Bool("run_on_start", set.runOnStart),
		logx.Bool("dry_run", set.task.DryRun))
	return nil
}

// recordRun appends one run log entry per attempt (scheduler retries show up
// as separate entries). Persistence failures are logged, never propagated; a
// broken run log must not fail the task.
func (a *App) recordRun(start time.Time, name string, rep linkrefresh.Report, runErr error) {
	if a.runs == nil {
		return
	}
	entry := runlog.Entry{
		At:     start,
		Task:   name,
		OK:     runErr == nil,
		TookMS: time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if detail, err := json.Marshal(rep); err == nil {
		entry.Detail = detail
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.runs.Append(ctx, entry); err != nil {
		a.log.Warn("run log append failed", logx.String("task", name), logx.Err(err))
	}
}
