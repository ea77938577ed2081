package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"noticebot/internal/config"
	"noticebot/internal/delivery"
	"noticebot/internal/feed"
	"noticebot/internal/metrics"
	"noticebot/internal/reconcile"
	rtsup "noticebot/internal/runtime/supervisor"
	"noticebot/internal/storage"
	"noticebot/internal/transport/telegram"
	logx "noticebot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	res  config.Resolved

	sup *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *telegram.Adapter
	rec     *reconcile.Reconciler
	loop    *delivery.Loop
	http    *metrics.Server
	sd      *sdNotifier

	stopDelivery context.CancelFunc
	deliveryDone chan struct{}
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	// The adapter needs the status renderer before the loop exists.
	var loop *delivery.Loop
	status := func() string {
		if loop == nil {
			return "starting"
		}
		return loop.Status()
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: res.PollTimeout,
		StatusChats: statusChats(cfg),
		Status:      status,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	store, err := storage.Open(mapStorage(res), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	appLog.Info("storage opened", logx.String("driver", res.StorageDriver), logx.String("path", res.StoragePath))

	fc, err := feed.New(mapFeed(cfg, res), nil)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	rec := reconcile.New(fc, store, log)
	loop = delivery.New(mapDelivery(cfg, res), rec, ad, log)

	a := &App{
		cfgm:    cfgm,
		res:     res,
		log:     appLog,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		rec:     rec,
		loop:    loop,
		http:    metrics.NewServer(mapHTTP(cfg, res), status, log),
		sd:      newSDNotifier(appLog),
	}
	loop.AfterTick = func(delivery.Report) { a.sd.Watchdog() }

	appLog.Info("configured",
		logx.String("feed", fc.Endpoint()),
		logx.Int64("notice_chat_id", cfg.Telegram.NoticeChatID),
		logx.Duration("interval", res.Interval),
	)
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.adapter.Start(a.sup.Context()); err != nil {
		return err
	}
	if err := a.http.Start(a.sup.Context()); err != nil {
		return err
	}

	// Delivery gets its own context so Stop can drain it before the transport goes away.
	dctx, dcancel := context.WithCancel(a.sup.Context())
	a.stopDelivery = dcancel
	a.deliveryDone = make(chan struct{})
	go func() {
		defer close(a.deliveryDone)
		if err := a.loop.Run(dctx, a.adapter.Ready()); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("delivery stopped", logx.Err(err))
		}
	}()

	a.sup.Go0("systemd.ready", func(c context.Context) {
		select {
		case <-c.Done():
		case <-a.adapter.Ready():
			a.sd.Ready()
		}
	})

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(applied, next)
				applied = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(prev, next *config.Config) {
	ch := config.Summarize(prev, next)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(mapLogging(next))
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
	if ch.Restart {
		a.log.Warn("config change requires restart to take effect", logx.String("changed", strings.Join(ch.Sections, ",")))
	}
}

// Stop drains the delivery loop, saves a checkpoint, then stops the
// transport and the remaining services.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("delivery", 10*time.Second, func(c context.Context) error {
		if a.stopDelivery == nil {
			return nil
		}
		a.stopDelivery()
		select {
		case <-a.deliveryDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	if a.res.CheckpointOnStop {
		step("checkpoint", 5*time.Second, func(c context.Context) error {
			saved, err := a.rec.Checkpoint(c)
			if errors.Is(err, reconcile.ErrNotInitialized) {
				return nil
			}
			if saved {
				a.log.Info("unsaved notices checkpointed")
			}
			return err
		})
	}
	step("http", 3*time.Second, a.http.Stop)
	step("telegram", 3*time.Second, a.adapter.Stop)

	a.sup.Cancel()
	step("supervisor", 3*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", 2*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}
