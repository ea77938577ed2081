package storage

import (
	"context"
	"errors"
	"time"

	"noticebot/internal/notice"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// DefaultPath is the state file used when none is configured.
const DefaultPath = "notice_data.json"

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON state file
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// State is the persisted snapshot: the fingerprint of the last saved feed
// and the feed itself.
type State struct {
	Fingerprint string          `json:"hash"`
	Notices     []notice.Notice `json:"notices"`
}

// Store is the persistence API used by the reconciler.
//
// Load returns the zero State (and no error) when nothing was saved yet.
// Save must never leave a partially written snapshot behind.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
	Close() error
}
