package runlog

// Package runlog provides a minimal persistence layer for task run history.
//
// It currently supports:
//   - Run outcome appends (one entry per completed run)
//   - Bounded retention per task (keep_runs)
