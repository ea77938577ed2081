package config

import (
	"reflect"
	"sort"

	logx "noticebot/pkg/logx"
)

// Change summarizes a reload.
type Change struct {
	Sections []string     // changed top-level sections, sorted
	Fields   []logx.Field // safe to log; never carries the bot token
	// Restart is true when a section other than logging changed. Only
	// logging is applied live.
	Restart bool
}

func Summarize(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		c.Sections = append(c.Sections, "logging")
		c.Fields = append(c.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot != nt {
		c.Sections = append(c.Sections, "telegram")
		c.Fields = append(c.Fields,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int64("telegram.notice_chat_id", nt.NoticeChatID),
			logx.Int64("telegram.alert_chat_id", nt.AlertChatID),
		)
	}
	if oldCfg.Feed != newCfg.Feed {
		c.Sections = append(c.Sections, "feed")
		c.Fields = append(c.Fields,
			logx.String("feed.base_url", newCfg.Feed.BaseURL),
			logx.String("feed.match_id", newCfg.Feed.MatchID),
		)
	}
	if !reflect.DeepEqual(oldCfg.Delivery, newCfg.Delivery) {
		c.Sections = append(c.Sections, "delivery")
		c.Fields = append(c.Fields, logx.String("delivery.interval", newCfg.Delivery.Interval))
	}
	if oldCfg.Storage != newCfg.Storage {
		c.Sections = append(c.Sections, "storage")
		c.Fields = append(c.Fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.HTTP != newCfg.HTTP {
		c.Sections = append(c.Sections, "http")
		c.Fields = append(c.Fields, logx.Bool("http.enabled", newCfg.HTTP.Enabled))
	}

	sort.Strings(c.Sections)
	for _, s := range c.Sections {
		if s != "logging" {
			c.Restart = true
			break
		}
	}
	return c
}
