package app

import (
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "noticebot/pkg/logx"
)

// sdNotifier reports lifecycle state to systemd. Outside systemd every call
// is a no-op.
type sdNotifier struct {
	log      logx.Logger
	watchdog time.Duration
	lastPing atomic.Int64
}

func newSDNotifier(log logx.Logger) *sdNotifier {
	n := &sdNotifier{log: log}
	if d, err := daemon.SdWatchdogEnabled(false); err == nil && d > 0 {
		n.watchdog = d
		log.Info("systemd watchdog enabled", logx.Duration("interval", d))
	}
	return n
}

func (n *sdNotifier) send(state string) bool {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
	return ok
}

func (n *sdNotifier) Ready() {
	if n.send(daemon.SdNotifyReady) {
		n.log.Info("systemd notified: ready")
	}
}

func (n *sdNotifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings at most twice per watchdog interval.
func (n *sdNotifier) Watchdog() {
	if n.watchdog <= 0 {
		return
	}
	now := time.Now().UnixNano()
	if last := n.lastPing.Load(); last != 0 && time.Duration(now-last) < n.watchdog/2 {
		return
	}
	n.lastPing.Store(now)
	n.send(daemon.SdNotifyWatchdog)
}
