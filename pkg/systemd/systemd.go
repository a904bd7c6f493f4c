// Package systemd integrates with the service manager when the scheduler
// runs as a Type=notify unit. Every call degrades to a no-op outside systemd
// (for example in a container), so callers never need to guard.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady reports startup as finished. Returns false when not running
// under a notify socket.
func NotifyReady() bool {
	ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady)
	return ok
}

// NotifyStopping reports that shutdown has begun.
func NotifyStopping() bool {
	ok, _ := daemon.SdNotify(false, daemon.SdNotifyStopping)
	return ok
}

// NotifyStatus publishes a one-line status shown by systemctl status.
func NotifyStatus(msg string) bool {
	ok, _ := daemon.SdNotify(false, "STATUS="+msg)
	return ok
}

// WatchdogInterval returns the ping interval to use when WatchdogSec is set
// on the unit, or 0 when no watchdog is armed. The interval is half the
// configured timeout so a single missed ping does not kill the service.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// RunWatchdog pings the watchdog every interval until ctx is canceled.
// It returns immediately for a non-positive interval.
func RunWatchdog(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
