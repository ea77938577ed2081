package app

import (
	"noticebot/internal/config"
	"noticebot/internal/delivery"
	"noticebot/internal/feed"
	"noticebot/internal/metrics"
	"noticebot/internal/storage"
	"noticebot/internal/transport"
	logx "noticebot/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.AlertChatID != 0,
			Target:     transport.ChatTarget{ChatID: cfg.Telegram.AlertChatID, ThreadID: cfg.Telegram.AlertThreadID},
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorage(r config.Resolved) storage.Config {
	return storage.Config{Driver: r.StorageDriver, Path: r.StoragePath, BusyTimeout: r.BusyTimeout}
}

func mapFeed(cfg *config.Config, r config.Resolved) feed.Config {
	return feed.Config{BaseURL: cfg.Feed.BaseURL, MatchID: cfg.Feed.MatchID, Timeout: r.FeedTimeout}
}

func mapDelivery(cfg *config.Config, r config.Resolved) delivery.Config {
	return delivery.Config{
		Interval:    r.Interval,
		SendTimeout: r.SendTimeout,
		RatePerSec:  r.RatePerSec,
		Target:      transport.ChatTarget{ChatID: cfg.Telegram.NoticeChatID, ThreadID: cfg.Telegram.NoticeThreadID},
	}
}

func mapHTTP(cfg *config.Config, r config.Resolved) metrics.ServerConfig {
	return metrics.ServerConfig{Enabled: cfg.HTTP.Enabled, Addr: r.HTTPAddr}
}

// statusChats are the chats allowed to use /status.
func statusChats(cfg *config.Config) []int64 {
	out := []int64{cfg.Telegram.NoticeChatID}
	if id := cfg.Telegram.AlertChatID; id != 0 && id != cfg.Telegram.NoticeChatID {
		out = append(out, id)
	}
	return out
}
