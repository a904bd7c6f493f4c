package runlog

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrDisabled = errors.New("run log disabled")

// Config configures the run log.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", the run log is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	KeepRuns    int           // retained runs per task; 0 means driver default
}

// Entry records one task run.
// Keep it compact and schema-stable.
type Entry struct {
	At       time.Time       `json:"at"`
	Task     string          `json:"task"`
	OK       bool            `json:"ok"`
	Attempts int             `json:"attempts,omitempty"`
	TookMS   int64           `json:"took_ms"`
	Error    string          `json:"err,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}
