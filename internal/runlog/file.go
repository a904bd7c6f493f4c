package runlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "lawly-scheduler/pkg/logx"
)

const (
	defaultKeepRuns    = 500
	defaultRecentLimit = 50

	// compactEvery bounds how many appends may pass between retention sweeps.
	compactEvery = 32
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.jsonl (append-only JSON Lines)
//
// The file is periodically compacted down to the newest KeepRuns entries
// per task.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path string
	f    *os.File

	keep   int
	writes int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("run_log.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"

	keep := cfg.KeepRuns
	if keep <= 0 {
		keep = defaultKeepRuns
	}

	// Best-effort compaction of an oversized file left by a previous run.
	if n, err := countLines(runsPath); err == nil && n > keep+compactEvery {
		if _, cerr := compactRunFile(runsPath, keep); cerr != nil {
			log.Debug("run log compact failed", logx.Any("err", cerr))
		}
	}

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:  log,
		path: runsPath,
		f:    f,
		keep: keep,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) Append(ctx context.Context, e Entry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("run log file closed")
	}
	if err := json.NewEncoder(s.f).Encode(e); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("run log compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) Recent(ctx context.Context, task string, limit int) ([]Entry, error) {
	_ = ctx
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	task = strings.TrimSpace(task)

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := readEntries(s.path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if task != "" && entries[i].Task != task {
			continue
		}
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	// The append handle points at the file compactRunFile replaces; reopen
	// afterwards whether or not the rewrite succeeded.
	_ = s.f.Close()
	s.f = nil

	_, cerr := compactRunFile(s.path, s.keep)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.f = f
	return cerr
}

// compactRunFile rewrites path keeping the newest keep entries per task,
// preserving append order. Unparseable lines are dropped.
func compactRunFile(path string, keep int) (int, error) {
	entries, err := readEntries(path)
	if err != nil {
		return 0, err
	}

	total := map[string]int{}
	for _, e := range entries {
		total[e.Task]++
	}
	kept := make([]Entry, 0, len(entries))
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.Task]++
		if total[e.Task]-seen[e.Task] < keep {
			kept = append(kept, e)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(f)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return 0, err
		}
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return len(kept), nil
}

func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var out []Entry
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
