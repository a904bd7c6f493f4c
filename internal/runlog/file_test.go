package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "lawly-scheduler/pkg/logx"
)

func openFileStore(t *testing.T, cfg Config) Store {
	t.Helper()
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st == nil {
		t.Fatalf("Open returned nil store for driver %q", cfg.Driver)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", "  None "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = (%v, %v), want (nil, nil)", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestFileAppendAndRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs")

	st := openFileStore(t, Config{Driver: "file", Path: path})

	base := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	for _, e := range []Entry{
		{At: base, Task: "link_refresh", OK: true, Attempts: 1, TookMS: 1200},
		{At: base.Add(time.Hour), Task: "cleanup", OK: false, Attempts: 3, Error: "boom"},
		{At: base.Add(2 * time.Hour), Task: "link_refresh", OK: true, Attempts: 1, Detail: []byte(`{"refreshed":4}`)},
	} {
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := st.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(all))
	}
	if all[0].Task != "link_refresh" || string(all[0].Detail) != `{"refreshed":4}` {
		t.Fatalf("newest entry wrong: %+v", all[0])
	}
	if all[1].Task != "cleanup" || all[1].OK || all[1].Error != "boom" {
		t.Fatalf("middle entry wrong: %+v", all[1])
	}

	refreshes, err := st.Recent(ctx, "link_refresh", 10)
	if err != nil {
		t.Fatalf("Recent(link_refresh): %v", err)
	}
	if len(refreshes) != 2 {
		t.Fatalf("filtered Recent returned %d entries, want 2", len(refreshes))
	}
	if !refreshes[0].At.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("filtered Recent not newest-first: %+v", refreshes[0])
	}

	one, err := st.Recent(ctx, "", 1)
	if err != nil {
		t.Fatalf("Recent(limit 1): %v", err)
	}
	if len(one) != 1 || one[0].Task != "link_refresh" {
		t.Fatalf("limited Recent wrong: %+v", one)
	}
}

func TestFileCompactionKeepsNewestPerTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs")

	st := openFileStore(t, Config{Driver: "file", Path: path, KeepRuns: 2})

	for i := 0; i < compactEvery; i++ {
		if err := st.Append(ctx, Entry{Task: "link_refresh", OK: true, Attempts: i}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := st.Recent(ctx, "link_refresh", 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries after compaction, want 2", len(got))
	}
	if got[0].Attempts != compactEvery-1 || got[1].Attempts != compactEvery-2 {
		t.Fatalf("kept wrong entries: attempts %d, %d", got[0].Attempts, got[1].Attempts)
	}
	if got[0].At.IsZero() {
		t.Fatalf("entry timestamp not defaulted on append")
	}

	// Entries survive a reopen.
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st2 := openFileStore(t, Config{Driver: "file", Path: path, KeepRuns: 2})
	again, err := st2.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent after reopen: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("got %d entries after reopen, want 2", len(again))
	}
}
