package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
telegram:
  token: "123:abc"
  notice_chat_id: -1001234567890
  notice_thread_id: 42
feed:
  base_url: https://ctf.example.org
  match_id: "3"
delivery:
  interval: 5s
storage:
  driver: sqlite
  path: ./data/noticebot.db
logging:
  level: debug
  console: true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func noEnv(string) (string, bool) { return "", false }

func TestLoadYAML(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.yaml", validYAML))
	m.SetEnvLookup(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.NoticeChatID != -1001234567890 || cfg.Telegram.NoticeThreadID != 42 {
		t.Fatalf("unexpected telegram: %+v", cfg.Telegram)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return committed config")
	}

	r, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Interval != 5*time.Second || r.FeedTimeout != DefaultFeedTimeout || r.SendTimeout != DefaultSendTimeout {
		t.Fatalf("unexpected durations: %+v", r)
	}
	if r.StorageDriver != "sqlite" || r.StoragePath != "./data/noticebot.db" {
		t.Fatalf("unexpected storage: %+v", r)
	}
	if !r.CheckpointOnStop || r.RatePerSec != DefaultRatePerSec {
		t.Fatalf("unexpected delivery defaults: %+v", r)
	}
}

func TestLoadJSONRejectsUnknownKeys(t *testing.T) {
	body := `{"telegram":{"token":"x","notice_chat_id":1},"feed":{"base_url":"http://x","match_id":"1"},"plugins":{}}`
	m := NewConfigManager(writeFile(t, "config.json", body))
	m.SetEnvLookup(noEnv)
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "plugins") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadJSONRejectsTrailingData(t *testing.T) {
	body := `{"telegram":{"token":"x","notice_chat_id":1},"feed":{"base_url":"http://x","match_id":"1"}}{}`
	m := NewConfigManager(writeFile(t, "config.json", body))
	m.SetEnvLookup(noEnv)
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvBaseURL:       "https://other.example.org",
		EnvMatchID:       "9",
		EnvGroupNoticeID: "-100555",
		EnvTelegramToken: "999:zzz",
	}
	m := NewConfigManager(writeFile(t, "config.yaml", validYAML))
	m.SetEnvLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.BaseURL != env[EnvBaseURL] || cfg.Feed.MatchID != "9" {
		t.Fatalf("feed overrides not applied: %+v", cfg.Feed)
	}
	if cfg.Telegram.NoticeChatID != -100555 || cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("telegram overrides not applied: %+v", cfg.Telegram)
	}

	env[EnvNoticeChatID] = "-100777"
	cfg, err = m.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Telegram.NoticeChatID != -100777 {
		t.Fatalf("NOTICE_CHAT_ID must win over GROUP_NOTICE_ID, got %d", cfg.Telegram.NoticeChatID)
	}

	env[EnvNoticeChatID] = "not-a-number"
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected invalid chat id error")
	}
}

func TestMissingFileUsesEnvironment(t *testing.T) {
	env := map[string]string{
		EnvBaseURL:       "https://ctf.example.org",
		EnvMatchID:       "1",
		EnvGroupNoticeID: "-100123",
		EnvTelegramToken: "1:x",
	}
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	m.SetEnvLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.NoticeChatID != -100123 || cfg.Feed.MatchID != "1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	m.SetEnvLookup(noEnv)
	if _, err := m.Load(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid without env, got %v", err)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("NOTICEBOT_TEST_TOKEN", "42:secret")
	body := strings.Replace(validYAML, `token: "123:abc"`, `token: "${NOTICEBOT_TEST_TOKEN}"`, 1)
	m := NewConfigManager(writeFile(t, "config.yml", body))
	m.SetEnvLookup(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "42:secret" {
		t.Fatalf("token not expanded: %q", cfg.Telegram.Token)
	}
}

func TestResolveErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty", Config{}, "telegram.token is required"},
		{"bad duration", Config{Delivery: DeliveryConfig{Interval: "soon"}}, "delivery.interval: invalid duration"},
		{"short interval", Config{Delivery: DeliveryConfig{Interval: "200ms"}}, "delivery.interval must be"},
		{"driver", Config{Storage: StorageConfig{Driver: "redis"}}, "unknown driver"},
		{"alerts", Config{Logging: LoggingConfig{Telegram: LoggingTelegram{Enabled: true}}}, "requires telegram.alert_chat_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(&tc.cfg)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestResolveCheckpointAndRate(t *testing.T) {
	off := false
	cfg := Config{
		Telegram: TelegramConfig{Token: "t", NoticeChatID: 1},
		Feed:     FeedConfig{BaseURL: "http://x", MatchID: "1"},
		Delivery: DeliveryConfig{CheckpointOnStop: &off, RatePerSec: -1},
	}
	r, err := Resolve(&cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.CheckpointOnStop || r.RatePerSec != 0 {
		t.Fatalf("unexpected: %+v", r)
	}
	if r.StorageDriver != "file" || r.StoragePath != DefaultStoragePath {
		t.Fatalf("unexpected storage defaults: %+v", r)
	}
}

func TestSummarize(t *testing.T) {
	a := &Config{Logging: LoggingConfig{Level: "info"}, Telegram: TelegramConfig{Token: "secret"}}
	b := *a
	b.Logging.Level = "debug"

	c := Summarize(a, &b)
	if len(c.Sections) != 1 || c.Sections[0] != "logging" || c.Restart {
		t.Fatalf("unexpected change: %+v", c)
	}

	b.Telegram.Token = "other"
	c = Summarize(a, &b)
	if !c.Restart || len(c.Sections) != 2 {
		t.Fatalf("unexpected change: %+v", c)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)
	m := NewConfigManager(path)
	m.SetEnvLookup(noEnv)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// Give the watcher time to register.
	time.Sleep(200 * time.Millisecond)
	updated := strings.Replace(validYAML, "level: debug", "level: warn", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("unexpected level %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config published")
	}

	cancel()
	<-done
}
