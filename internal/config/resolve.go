package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid config")

// Defaults applied by Resolve.
const (
	DefaultPollTimeout  = 10 * time.Second
	DefaultFeedTimeout  = 2500 * time.Millisecond
	DefaultInterval     = 3 * time.Second
	DefaultSendTimeout  = 5 * time.Second
	DefaultRatePerSec   = 1.0
	DefaultStoragePath  = "notice_data.json"
	DefaultHTTPAddr     = "127.0.0.1:9464"
	minDeliveryInterval = time.Second
)

// Resolved carries parsed durations and applied defaults.
type Resolved struct {
	PollTimeout      time.Duration
	FeedTimeout      time.Duration
	Interval         time.Duration
	SendTimeout      time.Duration
	RatePerSec       float64
	CheckpointOnStop bool
	StorageDriver    string
	StoragePath      string
	BusyTimeout      time.Duration
	HTTPAddr         string
}

// Resolve validates cfg and returns the effective settings. All problems are
// reported together.
func Resolve(cfg *Config) (Resolved, error) {
	if cfg == nil {
		return Resolved{}, fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var (
		r    Resolved
		errs []error
	)
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := parseDuration(path, raw, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.NoticeChatID == 0 {
		errs = append(errs, errors.New("telegram.notice_chat_id is required"))
	}
	if cfg.Telegram.NoticeThreadID < 0 || cfg.Telegram.AlertThreadID < 0 {
		errs = append(errs, errors.New("telegram thread ids must be >= 0"))
	}
	if strings.TrimSpace(cfg.Feed.BaseURL) == "" {
		errs = append(errs, errors.New("feed.base_url is required"))
	}
	if strings.TrimSpace(cfg.Feed.MatchID) == "" {
		errs = append(errs, errors.New("feed.match_id is required"))
	}
	if cfg.Logging.Telegram.Enabled && cfg.Telegram.AlertChatID == 0 {
		errs = append(errs, errors.New("logging.telegram.enabled requires telegram.alert_chat_id"))
	}

	r.PollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, DefaultPollTimeout)
	r.FeedTimeout = dur("feed.timeout", cfg.Feed.Timeout, DefaultFeedTimeout)
	r.Interval = dur("delivery.interval", cfg.Delivery.Interval, DefaultInterval)
	if r.Interval > 0 && r.Interval < minDeliveryInterval {
		errs = append(errs, fmt.Errorf("delivery.interval must be >= %s", minDeliveryInterval))
	}
	r.SendTimeout = dur("delivery.send_timeout", cfg.Delivery.SendTimeout, DefaultSendTimeout)

	switch {
	case cfg.Delivery.RatePerSec < 0:
		r.RatePerSec = 0
	case cfg.Delivery.RatePerSec == 0:
		r.RatePerSec = DefaultRatePerSec
	default:
		r.RatePerSec = cfg.Delivery.RatePerSec
	}
	r.CheckpointOnStop = cfg.Delivery.CheckpointOnStop == nil || *cfg.Delivery.CheckpointOnStop

	r.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if r.StorageDriver == "" {
		r.StorageDriver = "file"
	}
	switch r.StorageDriver {
	case "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	r.StoragePath = strings.TrimSpace(cfg.Storage.Path)
	if r.StoragePath == "" {
		r.StoragePath = DefaultStoragePath
	}
	r.BusyTimeout = dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)

	r.HTTPAddr = strings.TrimSpace(cfg.HTTP.Addr)
	if r.HTTPAddr == "" {
		r.HTTPAddr = DefaultHTTPAddr
	}

	if len(errs) > 0 {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return r, nil
}

func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
