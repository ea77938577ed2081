// Package telegram is the Telegram chat transport, built on telebot.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "noticebot/internal/runtime/supervisor"
	"noticebot/internal/transport"
	logx "noticebot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// APIURL defaults to the public Bot API.
	APIURL string

	// StatusChats may use the /status command. Empty disables the command.
	StatusChats []int64
	Status      transport.StatusFunc
}

type Adapter struct {
	cfg  Config
	log  logx.Logger
	bot  *tele.Bot
	api  string
	http *http.Client

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	readyOnce sync.Once
	ready     chan struct{}
}

var _ transport.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if api == "" {
		api = tele.DefaultApiURL
	}
	// Offline skips the getMe call in NewBot; Start calls getMe itself so
	// construction never blocks on the network.
	b, err := tele.NewBot(tele.Settings{
		URL:     api,
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: true,
		OnError: func(err error, c tele.Context) {
			log.Warn("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		cfg:   cfg,
		log:   log,
		bot:   b,
		api:   api,
		http:  &http.Client{Timeout: 15 * time.Second},
		ready: make(chan struct{}),
	}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	if len(a.cfg.StatusChats) == 0 || a.cfg.Status == nil {
		return
	}
	allowed := make(map[int64]struct{}, len(a.cfg.StatusChats))
	for _, id := range a.cfg.StatusChats {
		allowed[id] = struct{}{}
	}
	a.bot.Handle("/status", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		if _, ok := allowed[chat.ID]; !ok {
			a.log.Debug("status denied", logx.Int64("chat_id", chat.ID))
			return nil
		}
		return c.Send(a.cfg.Status(), &tele.SendOptions{DisableWebPagePreview: true})
	})
}

// Ready is closed once getMe has succeeded.
func (a *Adapter) Ready() <-chan struct{} { return a.ready }

func (a *Adapter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// adapter errors should not take down the whole app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.GoRestart("telegram.connect", func(c context.Context) error {
		if err := a.connect(c); err != nil {
			return err
		}

		sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
			<-c.Done()
			a.bot.Stop()
		})
		sup.GoRestart("telebot.poll", func(c context.Context) error {
			a.log.Info("polling started")
			// Start blocks until Stop() is called.
			a.bot.Start()
			a.log.Info("polling stopped")
			return nil
		},
			rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
			// Restart if Start() returns while context is still active.
			rtsup.WithStopOnCleanExit(false),
		)
		return nil
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))

	return nil
}

// connect checks the token with getMe and marks the adapter ready. The bot
// was built offline, so Me is filled in here for command matching in groups.
func (a *Adapter) connect(ctx context.Context) error {
	var me tele.User
	if err := a.call(ctx, "getMe", nil, &me); err != nil {
		return err
	}
	a.bot.Me = &me
	a.log.Info("telegram connected", logx.String("username", me.Username), logx.Int64("id", me.ID))
	a.readyOnce.Do(func() { close(a.ready) })
	return nil
}

// call invokes a Bot API method bound to ctx and decodes its result into out.
func (a *Adapter) call(ctx context.Context, method string, payload, out any) error {
	body := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = b
	}
	url := a.api + "/bot" + a.cfg.Token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		// url.Error carries the token; keep only the cause.
		if ctx.Err() != nil {
			return fmt.Errorf("telegram %s: %w", method, ctx.Err())
		}
		return fmt.Errorf("telegram %s: %w", method, errors.Unwrap(err))
	}
	defer resp.Body.Close()

	var env struct {
		OK          bool            `json:"ok"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("telegram %s: http=%d: %w", method, resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 || !env.OK {
		if env.Description != "" {
			return fmt.Errorf("telegram %s failed: %s (code=%d http=%d)", method, env.Description, env.ErrorCode, resp.StatusCode)
		}
		return fmt.Errorf("telegram %s failed: http=%d", method, resp.StatusCode)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}

func (a *Adapter) Stop(ctx context.Context) error {
	// Best-effort graceful stop. Never block shutdown for too long on Telegram long-poll.
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping")
	sup.Cancel()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
	}
	return nil
}

const telegramTextLimit = 4000

// SendText posts text and returns once Telegram answers or ctx is done.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	select {
	case <-a.ready:
	default:
		return transport.MessageRef{}, transport.ErrNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	if rs := []rune(text); len(rs) > telegramTextLimit {
		text = string(rs[:telegramTextLimit-3]) + "..."
	}

	payload := sendMessage{
		ChatID:         to.ChatID,
		ThreadID:       to.ThreadID,
		Text:           text,
		ParseMode:      opt.ParseMode,
		DisablePreview: opt.DisablePreview,
	}
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := a.call(ctx, "sendMessage", payload, &msg); err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.MessageID}, nil
}

type sendMessage struct {
	ChatID         int64  `json:"chat_id"`
	ThreadID       int    `json:"message_thread_id,omitempty"`
	Text           string `json:"text"`
	ParseMode      string `json:"parse_mode,omitempty"`
	DisablePreview bool   `json:"disable_web_page_preview,omitempty"`
}
