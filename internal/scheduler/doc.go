// Package scheduler runs named tasks on cron or interval triggers.
//
// Cron fires enqueue tasks into a bounded queue; a small worker pool executes
// them with per-attempt timeouts and retry backoff. Every run lands in a
// bounded in-memory history ring, and task lifecycle events are published on
// the event bus.
package scheduler
