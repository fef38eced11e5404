// Package watchdog detects a stalled receive loop and keeps systemd informed.
//
// The loop calls Feed on every iteration. Run checks the beat count
// periodically; when no beat arrives within the timeout the expiry handler
// fires (by default a fatal log, so systemd restarts the service). While the
// loop is alive, WATCHDOG=1 is sent to systemd when a notify socket exists.
package watchdog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout is the loop stall that triggers expiry.
const DefaultTimeout = 2 * time.Second

// Guard watches for loop beats.
type Guard struct {
	timeout  time.Duration
	beats    atomic.Uint64
	seen     uint64
	lastBeat time.Time
	expired  bool

	// OnExpire is called once when the loop stalls for longer than the timeout.
	OnExpire func(stalled time.Duration)

	// Notify sends a state string to the service manager.
	Notify func(state string)
}

// New creates a Guard. A zero timeout disables expiry checks.
func New(timeout time.Duration) *Guard {
	return &Guard{
		timeout: timeout,
		OnExpire: func(stalled time.Duration) {
			log.Fatalf("watchdog: receive loop stalled for %v", stalled)
		},
		Notify: notifySystemd,
	}
}

// Timeout returns the configured stall timeout.
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Feed records a loop beat. Safe to call from any goroutine.
func (g *Guard) Feed() {
	g.beats.Add(1)
}

// Run checks for beats until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) {
	if g.timeout <= 0 {
		return
	}

	g.lastBeat = time.Now()
	ticker := time.NewTicker(g.timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.check(now)
		}
	}
}

// check compares the beat count against the previous check and reports
// whether the loop is still considered alive.
func (g *Guard) check(now time.Time) bool {
	if n := g.beats.Load(); n != g.seen {
		g.seen = n
		g.lastBeat = now
		g.expired = false
		g.Notify(daemon.SdNotifyWatchdog)
		return true
	}

	stalled := now.Sub(g.lastBeat)
	if stalled <= g.timeout {
		return true
	}
	if !g.expired {
		g.expired = true
		g.OnExpire(stalled)
	}
	return false
}

// Ready tells systemd that startup has finished.
func Ready() {
	notifySystemd(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func Stopping() {
	notifySystemd(daemon.SdNotifyStopping)
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.WithError(err).Warnf("watchdog: sd_notify %s", state)
		return
	}
	if !sent {
		log.Tracef("watchdog: no notify socket for %s", state)
	}
}
