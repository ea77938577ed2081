// Package feed fetches the public notice list of a GZ::CTF game.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"noticebot/internal/metrics"
	"noticebot/internal/notice"
)

var (
	ErrStatus = errors.New("unexpected feed status")
	ErrDecode = errors.New("decode feed")
)

const (
	DefaultTimeout = 2500 * time.Millisecond
	maxBody        = 8 << 20
)

type Config struct {
	BaseURL string
	MatchID string
	Timeout time.Duration
}

// Client fetches GET {base}/api/game/{match}/notices.
type Client struct {
	hc       *http.Client
	endpoint string
	timeout  time.Duration
}

func New(cfg Config, hc *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("feed base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("feed base url: %w", err)
	}
	match := strings.TrimSpace(cfg.MatchID)
	if match == "" {
		return nil, errors.New("feed match id is required")
	}
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		hc:       hc,
		endpoint: base + "/api/game/" + url.PathEscape(match) + "/notices",
		timeout:  timeout,
	}, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

// Fetch returns the feed in server order (newest first).
func (c *Client) Fetch(ctx context.Context) (out []notice.Notice, err error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch(time.Since(start), err == nil) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if out == nil {
		out = []notice.Notice{}
	}
	return out, nil
}
