package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// listenNotify creates a notify socket and points NOTIFY_SOCKET at it.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", sock)
	return conn
}

func readState(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if NotifyReady() {
		t.Fatal("NotifyReady should be a no-op without a socket")
	}
	if NotifyStopping() {
		t.Fatal("NotifyStopping should be a no-op without a socket")
	}
}

func TestNotifySendsState(t *testing.T) {
	conn := listenNotify(t)

	if !NotifyReady() {
		t.Fatal("NotifyReady failed with socket present")
	}
	if got := readState(t, conn); got != "READY=1" {
		t.Fatalf("state = %q, want READY=1", got)
	}

	if !NotifyStatus("refreshing links") {
		t.Fatal("NotifyStatus failed")
	}
	if got := readState(t, conn); got != "STATUS=refreshing links" {
		t.Fatalf("state = %q", got)
	}

	if !NotifyStopping() {
		t.Fatal("NotifyStopping failed")
	}
	if got := readState(t, conn); got != "STOPPING=1" {
		t.Fatalf("state = %q, want STOPPING=1", got)
	}
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")
	if got := WatchdogInterval(); got != 0 {
		t.Fatalf("disarmed watchdog interval = %v, want 0", got)
	}

	t.Setenv("WATCHDOG_USEC", "2000000")
	t.Setenv("WATCHDOG_PID", strconv.Itoa(os.Getpid()))
	if got := WatchdogInterval(); got != time.Second {
		t.Fatalf("interval = %v, want 1s", got)
	}
}

func TestRunWatchdogPings(t *testing.T) {
	conn := listenNotify(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunWatchdog(ctx, 5*time.Millisecond)
		close(done)
	}()

	got := readState(t, conn)
	cancel()
	<-done

	if !strings.Contains(got, "WATCHDOG=1") {
		t.Fatalf("state = %q, want WATCHDOG=1", got)
	}
}
