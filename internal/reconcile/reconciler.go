// Package reconcile decides which notices of a feed snapshot are new.
//
// The first pass after start-up (cold) compares the feed against the
// persisted snapshot by fingerprint and structural difference, then saves
// the feed. Later passes (warm) only compare the feed length against the
// last seen length and never touch storage.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"noticebot/internal/notice"
	"noticebot/internal/storage"
	logx "noticebot/pkg/logx"
)

var ErrNotInitialized = errors.New("reconciler not initialized")

// Fetcher returns the current feed, newest first.
type Fetcher interface {
	Fetch(ctx context.Context) ([]notice.Notice, error)
}

// EmitFunc receives each new notice, oldest first.
type EmitFunc func(ctx context.Context, n notice.Notice)

type Mode string

const (
	ModeCold Mode = "cold"
	ModeWarm Mode = "warm"
)

// Result describes one pass.
type Result struct {
	Mode      Mode
	FeedLen   int
	Emitted   int
	Persisted bool // cold pass with a changed fingerprint only
}

// State is a point-in-time copy of the reconciler's memory.
type State struct {
	Initialized    bool
	LastKnownCount int
	Dirty          bool // warm passes emitted since the last save
	LastSavedAt    time.Time
}

type Reconciler struct {
	fetch Fetcher
	store storage.Store
	log   logx.Logger

	mu          sync.Mutex
	initialized bool
	lastCount   int
	lastFeed    []notice.Notice
	dirty       bool
	savedAt     time.Time
}

func New(fetch Fetcher, store storage.Store, log logx.Logger) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{fetch: fetch, store: store, log: log.With(logx.String("comp", "reconcile"))}
}

// Reconcile runs one pass. Emission happens before any persist. A fetch error
// aborts the pass with nothing emitted and the state untouched.
func (r *Reconciler) Reconcile(ctx context.Context, emit EmitFunc) (Result, error) {
	if emit == nil {
		emit = func(context.Context, notice.Notice) {}
	}

	feed, err := r.fetch.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	warm := r.initialized
	r.mu.Unlock()

	if warm {
		return r.warm(ctx, feed, emit), nil
	}
	return r.cold(ctx, feed, emit), nil
}

func (r *Reconciler) cold(ctx context.Context, feed []notice.Notice, emit EmitFunc) Result {
	res := Result{Mode: ModeCold, FeedLen: len(feed)}
	fp := storage.Fingerprint(feed)

	prev, err := r.store.Load(ctx)
	if err != nil {
		r.log.Warn("state load failed; starting from empty baseline", logx.Err(err))
		prev = storage.State{}
	}

	if prev.Fingerprint == fp {
		r.log.Info("feed unchanged since last run", logx.Int("count", len(feed)))
		r.transition(feed, false, time.Time{})
		return res
	}

	var added []notice.Notice
	for _, n := range feed {
		if !notice.Contains(prev.Notices, n) {
			added = append(added, n)
		}
	}
	for _, n := range notice.Reversed(added) {
		emit(ctx, n)
	}
	res.Emitted = len(added)

	var saved time.Time
	if err := r.store.Save(ctx, storage.State{Fingerprint: fp, Notices: feed}); err != nil {
		r.log.Error("state save failed", logx.Err(err))
	} else {
		res.Persisted = true
		saved = time.Now()
	}
	r.log.Info("cold pass done",
		logx.Int("count", len(feed)),
		logx.Int("emitted", res.Emitted),
		logx.Bool("persisted", res.Persisted),
	)
	r.transition(feed, false, saved)
	return res
}

func (r *Reconciler) warm(ctx context.Context, feed []notice.Notice, emit EmitFunc) Result {
	res := Result{Mode: ModeWarm, FeedLen: len(feed)}

	r.mu.Lock()
	last := r.lastCount
	r.mu.Unlock()

	if len(feed) <= last {
		return res
	}
	fresh := feed[:len(feed)-last]
	for _, n := range notice.Reversed(fresh) {
		emit(ctx, n)
	}
	res.Emitted = len(fresh)
	r.transition(feed, true, time.Time{})
	return res
}

func (r *Reconciler) transition(feed []notice.Notice, dirty bool, saved time.Time) {
	cp := make([]notice.Notice, len(feed))
	copy(cp, feed)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	r.lastCount = len(feed)
	r.lastFeed = cp
	if dirty {
		r.dirty = true
	}
	if !saved.IsZero() {
		r.savedAt = saved
		r.dirty = false
	}
}

// Checkpoint saves the last seen feed if warm passes emitted notices since the
// last save. It must not run concurrently with Reconcile.
func (r *Reconciler) Checkpoint(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return false, ErrNotInitialized
	}
	if !r.dirty {
		r.mu.Unlock()
		return false, nil
	}
	feed := r.lastFeed
	r.mu.Unlock()

	st := storage.State{Fingerprint: storage.Fingerprint(feed), Notices: feed}
	if err := r.store.Save(ctx, st); err != nil {
		return false, err
	}

	r.mu.Lock()
	r.dirty = false
	r.savedAt = time.Now()
	r.mu.Unlock()
	r.log.Info("checkpoint saved", logx.Int("count", len(feed)))
	return true, nil
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Initialized:    r.initialized,
		LastKnownCount: r.lastCount,
		Dirty:          r.dirty,
		LastSavedAt:    r.savedAt,
	}
}
