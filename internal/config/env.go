package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables that override file values when set.
const (
	EnvBaseURL        = "GZCTF_URL"
	EnvMatchID        = "MATCH_ID"
	EnvNoticeChatID   = "NOTICE_CHAT_ID"
	EnvGroupNoticeID  = "GROUP_NOTICE_ID" // legacy alias of NOTICE_CHAT_ID
	EnvNoticeThreadID = "NOTICE_THREAD_ID"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvAlertChatID    = "ALERT_CHAT_ID"
)

// ApplyEnv overlays environment overrides onto cfg. lookup defaults to
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if cfg == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(keys ...string) (string, string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return k, strings.TrimSpace(v), true
			}
		}
		return "", "", false
	}

	if _, v, ok := get(EnvBaseURL); ok {
		cfg.Feed.BaseURL = v
	}
	if _, v, ok := get(EnvMatchID); ok {
		cfg.Feed.MatchID = v
	}
	if _, v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if k, v, ok := get(EnvNoticeChatID, EnvGroupNoticeID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", k, v)
		}
		cfg.Telegram.NoticeChatID = id
	}
	if k, v, ok := get(EnvNoticeThreadID); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid thread id %q", k, v)
		}
		cfg.Telegram.NoticeThreadID = id
	}
	if k, v, ok := get(EnvAlertChatID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", k, v)
		}
		cfg.Telegram.AlertChatID = id
	}
	return nil
}
