package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("3s", "2500ms"). Empty means default.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Feed     FeedConfig     `json:"feed"`
	Delivery DeliveryConfig `json:"delivery"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	HTTP     HTTPConfig     `json:"http"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`

	// Notices go to NoticeChatID (and NoticeThreadID for forum groups).
	NoticeChatID   int64 `json:"notice_chat_id"`
	NoticeThreadID int   `json:"notice_thread_id,omitempty"`

	// Operator alerts (fetch failures, send failures). 0 disables.
	AlertChatID   int64 `json:"alert_chat_id,omitempty"`
	AlertThreadID int   `json:"alert_thread_id,omitempty"`
}

// FeedConfig points at a GZ::CTF instance and game.
//
// Example:
//
//	"feed": { "base_url": "https://ctf.example.org", "match_id": "3" }
type FeedConfig struct {
	BaseURL string `json:"base_url"`
	MatchID string `json:"match_id"`
	Timeout string `json:"timeout,omitempty"` // default: 2.5s
}

type DeliveryConfig struct {
	Interval    string  `json:"interval,omitempty"`     // default: 3s
	SendTimeout string  `json:"send_timeout,omitempty"` // default: 5s
	RatePerSec  float64 `json:"rate_per_sec,omitempty"` // default: 1; negative disables

	// CheckpointOnStop saves unsaved warm progress on graceful shutdown.
	// Pointer so an omitted key defaults to true.
	CheckpointOnStop *bool `json:"checkpoint_on_stop,omitempty"`
}

// StorageConfig selects where the last seen feed is kept.
//
//	"storage": { "driver": "file", "path": "notice_data.json" }
//	"storage": { "driver": "sqlite", "path": "./data/noticebot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log lines at or above MinLevel to the alert chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: 127.0.0.1:9464
}
