package delivery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"noticebot/internal/metrics"
	"noticebot/internal/notice"
	"noticebot/internal/reconcile"
	"noticebot/internal/transport"
	logx "noticebot/pkg/logx"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultSendTimeout = 5 * time.Second
)

type Config struct {
	Interval    time.Duration
	SendTimeout time.Duration
	RatePerSec  float64 // 0 disables the send limiter
	Target      transport.ChatTarget
}

// Reconciler is the part of reconcile.Reconciler the loop needs.
type Reconciler interface {
	Reconcile(ctx context.Context, emit reconcile.EmitFunc) (reconcile.Result, error)
	State() reconcile.State
}

// Report summarizes one tick.
type Report struct {
	ID      string
	At      time.Time
	Took    time.Duration
	Mode    reconcile.Mode
	Emitted int
	Sent    int
	Skipped int
	Failed  int
	Err     error
}

type Loop struct {
	cfg    Config
	rec    Reconciler
	sender transport.Sender
	log    logx.Logger
	lim    *rate.Limiter

	// AfterTick runs at the end of every tick, including failed ones.
	AfterTick func(Report)

	mu         sync.Mutex
	last       Report
	sent       int64
	failed     int64
	ticks      int64
	fetchFails int // consecutive failed fetches
	cron       *cron.Cron
}

func New(cfg Config, rec Reconciler, sender transport.Sender, log logx.Logger) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	l := &Loop{cfg: cfg, rec: rec, sender: sender, log: log.With(logx.String("comp", "delivery"))}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		l.lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return l
}

// Run blocks until ctx is done. No tick is scheduled before ready is closed.
// On return the in-flight tick, if any, has finished.
func (l *Loop) Run(ctx context.Context, ready <-chan struct{}) error {
	if ready != nil {
		l.log.Debug("waiting for transport")
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cl := cronLogger{log: l.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(l.cfg.Interval), cron.FuncJob(func() { l.Tick(ctx) }))

	l.mu.Lock()
	l.cron = c
	l.mu.Unlock()

	c.Start()
	l.log.Info("delivery started",
		logx.Duration("interval", l.cfg.Interval),
		logx.Int64("chat_id", l.cfg.Target.ChatID),
		logx.Int("thread_id", l.cfg.Target.ThreadID),
	)

	<-ctx.Done()
	<-c.Stop().Done()

	l.mu.Lock()
	l.cron = nil
	l.mu.Unlock()
	l.log.Info("delivery stopped")
	return nil
}

// Tick runs one reconcile pass and sends what it emits. Panics are recovered
// and reported as a failed tick.
func (l *Loop) Tick(ctx context.Context) (rep Report) {
	rep = Report{ID: uuid.NewString(), At: time.Now()}
	log := l.log.With(logx.String("tick", rep.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("tick panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			rep.Err = fmt.Errorf("panic: %v", r)
			metrics.ObserveTick(modeOrNone(rep.Mode), "panic")
		}
		rep.Took = time.Since(rep.At)
		l.finish(rep)
	}()

	res, err := l.rec.Reconcile(ctx, func(ctx context.Context, n notice.Notice) {
		rep.Emitted++
		metrics.IncNotice("emitted", string(n.Type))
		switch l.deliver(ctx, log, n) {
		case outcomeSent:
			rep.Sent++
		case outcomeSkipped:
			rep.Skipped++
		case outcomeFailed:
			rep.Failed++
		}
	})
	if err != nil {
		rep.Err = err
		if !errors.Is(err, context.Canceled) {
			l.fetchFailed(log, err)
		}
		metrics.ObserveTick("none", "fetch_error")
		return rep
	}
	l.fetchRecovered(log)
	rep.Mode = res.Mode
	metrics.ObserveTick(string(res.Mode), "ok")
	if rep.Emitted > 0 {
		log.Info("tick delivered",
			logx.String("mode", string(res.Mode)),
			logx.Int("emitted", rep.Emitted),
			logx.Int("sent", rep.Sent),
			logx.Int("skipped", rep.Skipped),
			logx.Int("failed", rep.Failed),
		)
	}
	return rep
}

// alertEvery is how many consecutive fetch failures pass between error-level
// reports. Everything in between is logged at debug.
const alertEvery = 20

func (l *Loop) fetchFailed(log logx.Logger, err error) {
	l.mu.Lock()
	l.fetchFails++
	n := l.fetchFails
	l.mu.Unlock()

	if n == 1 || n%alertEvery == 0 {
		log.Error("feed fetch failed", logx.Int("consecutive", n), logx.Err(err))
		return
	}
	log.Debug("feed fetch failed", logx.Int("consecutive", n), logx.Err(err))
}

func (l *Loop) fetchRecovered(log logx.Logger) {
	l.mu.Lock()
	n := l.fetchFails
	l.fetchFails = 0
	l.mu.Unlock()

	if n > 0 {
		log.Info("feed fetch recovered", logx.Int("failed_ticks", n))
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (l *Loop) deliver(ctx context.Context, log logx.Logger, n notice.Notice) outcome {
	text, err := notice.Format(n)
	if err != nil {
		log.Warn("notice skipped", logx.String("type", string(n.Type)), logx.Err(err))
		metrics.IncNotice("skipped", string(n.Type))
		return outcomeSkipped
	}
	if text == "" {
		log.Warn("notice skipped: unknown type", logx.String("type", string(n.Type)))
		metrics.IncNotice("skipped", string(n.Type))
		return outcomeSkipped
	}

	if l.lim != nil {
		if err := l.lim.Wait(ctx); err != nil {
			log.Warn("send aborted", logx.String("type", string(n.Type)), logx.Err(err))
			metrics.IncNotice("failed", string(n.Type))
			return outcomeFailed
		}
	}

	sctx, cancel := context.WithTimeout(ctx, l.cfg.SendTimeout)
	defer cancel()
	if _, err := l.sender.SendText(sctx, l.cfg.Target, text, nil); err != nil {
		log.Error("notice send failed",
			logx.String("type", string(n.Type)),
			logx.String("time", n.Time),
			logx.Err(err),
		)
		metrics.IncNotice("failed", string(n.Type))
		return outcomeFailed
	}
	metrics.IncNotice("sent", string(n.Type))
	return outcomeSent
}

func (l *Loop) finish(rep Report) {
	l.mu.Lock()
	l.last = rep
	l.ticks++
	l.sent += int64(rep.Sent)
	l.failed += int64(rep.Failed)
	hook := l.AfterTick
	l.mu.Unlock()

	if hook != nil {
		hook(rep)
	}
}

// Last returns the report of the most recent tick.
func (l *Loop) Last() Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Status renders a short human readable summary for /status.
func (l *Loop) Status() string {
	st := l.rec.State()

	l.mu.Lock()
	last := l.last
	ticks, sent, failed := l.ticks, l.sent, l.failed
	l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "initialized: %t\n", st.Initialized)
	fmt.Fprintf(&b, "last known count: %d\n", st.LastKnownCount)
	if !st.LastSavedAt.IsZero() {
		fmt.Fprintf(&b, "last saved: %s\n", st.LastSavedAt.In(notice.DisplayZone).Format("2006-01-02 15:04:05"))
	}
	if st.Dirty {
		b.WriteString("unsaved warm progress: yes\n")
	}
	if last.At.IsZero() {
		b.WriteString("last tick: never\n")
	} else {
		result := "ok"
		if last.Err != nil {
			result = "error: " + last.Err.Error()
		}
		fmt.Fprintf(&b, "last tick: %s (%s, %s)\n",
			last.At.In(notice.DisplayZone).Format("2006-01-02 15:04:05"), modeOrNone(last.Mode), result)
	}
	fmt.Fprintf(&b, "ticks: %d sent: %d failed: %d", ticks, sent, failed)
	return b.String()
}

func modeOrNone(m reconcile.Mode) string {
	if m == "" {
		return "none"
	}
	return string(m)
}
