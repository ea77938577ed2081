package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"noticebot/internal/notice"
	logx "noticebot/pkg/logx"
)

func sampleNotices() []notice.Notice {
	return []notice.Notice{
		{Time: "2024-01-01T12:00:00.000Z", Type: notice.KindNewChallenge, Values: []string{"pwn1"}},
		{Time: "2024-01-01T12:05:00.000Z", Type: notice.KindFirstBlood, Values: []string{"alice", "pwn1"}},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := sampleNotices()
	b := sampleNotices()
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("expected equal fingerprints for equal feeds")
	}
	if got := len(Fingerprint(a)); got != 64 {
		t.Fatalf("expected 64 hex chars, got %d", got)
	}
}

func TestFingerprintSensitive(t *testing.T) {
	base := sampleNotices()
	cases := []struct {
		name   string
		mutate func([]notice.Notice) []notice.Notice
	}{
		{"value", func(ns []notice.Notice) []notice.Notice { ns[1].Values[0] = "bob"; return ns }},
		{"order", func(ns []notice.Notice) []notice.Notice { ns[0], ns[1] = ns[1], ns[0]; return ns }},
		{"type", func(ns []notice.Notice) []notice.Notice { ns[1].Type = notice.KindSecondBlood; return ns }},
		{"drop", func(ns []notice.Notice) []notice.Notice { return ns[:1] }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if Fingerprint(tc.mutate(sampleNotices())) == Fingerprint(base) {
				t.Fatalf("fingerprint did not change")
			}
		})
	}
}

func TestFingerprintNilValuesMatchEmpty(t *testing.T) {
	a := []notice.Notice{{Time: "t", Type: notice.KindNewHint}}
	b := []notice.Notice{{Time: "t", Type: notice.KindNewHint, Values: []string{}}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("nil and empty values should fingerprint the same")
	}
	if Fingerprint(nil) != Fingerprint([]notice.Notice{}) {
		t.Fatalf("nil and empty feeds should fingerprint the same")
	}
}

func testRoundTrip(t *testing.T, cfg Config) {
	t.Helper()
	ctx := context.Background()

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got.Fingerprint != "" || len(got.Notices) != 0 {
		t.Fatalf("expected zero state, got %+v", got)
	}

	want := State{Fingerprint: Fingerprint(sampleNotices()), Notices: sampleNotices()}
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Fingerprint != want.Fingerprint {
		t.Fatalf("fingerprint mismatch: %q vs %q", got.Fingerprint, want.Fingerprint)
	}
	if len(got.Notices) != len(want.Notices) {
		t.Fatalf("notice count mismatch: %d vs %d", len(got.Notices), len(want.Notices))
	}
	for i := range want.Notices {
		if !got.Notices[i].Equal(want.Notices[i]) {
			t.Fatalf("notice %d mismatch: %+v vs %+v", i, got.Notices[i], want.Notices[i])
		}
	}

	// Overwrite with a shorter snapshot.
	short := State{Fingerprint: Fingerprint(nil), Notices: nil}
	if err := st.Save(ctx, short); err != nil {
		t.Fatalf("save short: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("load short: %v", err)
	}
	if got.Fingerprint != short.Fingerprint || len(got.Notices) != 0 {
		t.Fatalf("unexpected state after overwrite: %+v", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	testRoundTrip(t, Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state", "notice_data.json")})
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	testRoundTrip(t, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")})
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "notice_data.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := st.Save(context.Background(), State{Fingerprint: "x", Notices: sampleNotices()}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "notice_data.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected files: %v", names)
	}
}

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice_data.json")
	if err := os.WriteFile(path, []byte(`{"hash":"abc","notices":[{"time":"t","type":"NewHint","values":["web1"]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Fingerprint != "abc" || len(got.Notices) != 1 || got.Notices[0].Values[0] != "web1" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
