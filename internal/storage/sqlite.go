package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"noticebot/internal/notice"
	logx "noticebot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notice_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	hash       TEXT NOT NULL,
	notices    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Load(ctx context.Context) (State, error) {
	var (
		hash string
		raw  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT hash, notices FROM notice_state WHERE id = 1`).Scan(&hash, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var notices []notice.Notice
	if err := json.Unmarshal([]byte(raw), &notices); err != nil {
		return State{}, fmt.Errorf("decode notices: %w", err)
	}
	return State{Fingerprint: hash, Notices: notices}, nil
}

func (s *sqliteStore) Save(ctx context.Context, st State) error {
	if st.Notices == nil {
		st.Notices = []notice.Notice{}
	}
	raw, err := json.Marshal(st.Notices)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notice_state(id, hash, notices, updated_at) VALUES(1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET hash=excluded.hash, notices=excluded.notices, updated_at=excluded.updated_at`,
		st.Fingerprint, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
