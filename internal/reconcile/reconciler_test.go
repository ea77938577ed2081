package reconcile

import (
	"context"
	"errors"
	"testing"

	"noticebot/internal/notice"
	"noticebot/internal/storage"
	logx "noticebot/pkg/logx"
)

type fakeFeed struct {
	feeds [][]notice.Notice
	errs  []error
	calls int
}

func (f *fakeFeed) Fetch(ctx context.Context) ([]notice.Notice, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.feeds) {
		i = len(f.feeds) - 1
	}
	return f.feeds[i], nil
}

type memStore struct {
	st      storage.State
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (m *memStore) Load(ctx context.Context) (storage.State, error) {
	m.loads++
	return m.st, m.loadErr
}

func (m *memStore) Save(ctx context.Context, st storage.State) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.st = st
	return nil
}

func (m *memStore) Close() error { return nil }

func n(v string) notice.Notice {
	return notice.Notice{Time: "2024-01-01T12:00:00Z", Type: notice.KindNewChallenge, Values: []string{v}}
}

func collect(out *[]notice.Notice) EmitFunc {
	return func(ctx context.Context, x notice.Notice) { *out = append(*out, x) }
}

func values(list []notice.Notice) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		out = append(out, x.Values[0])
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestColdStartUnchanged(t *testing.T) {
	feed := []notice.Notice{n("A"), n("B")}
	store := &memStore{st: storage.State{Fingerprint: storage.Fingerprint(feed), Notices: feed}}
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed}}, store, logx.Nop())

	var got []notice.Notice
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(got) != 0 || res.Emitted != 0 {
		t.Fatalf("expected no emission, got %v", values(got))
	}
	if store.saves != 0 {
		t.Fatalf("expected no save, got %d", store.saves)
	}
	st := r.State()
	if !st.Initialized || st.LastKnownCount != 2 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestColdStartDelta(t *testing.T) {
	old := []notice.Notice{n("A"), n("B")}
	feed := []notice.Notice{n("X"), n("A"), n("B")}
	store := &memStore{st: storage.State{Fingerprint: storage.Fingerprint(old), Notices: old}}
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed}}, store, logx.Nop())

	var got []notice.Notice
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !equalStrings(values(got), []string{"X"}) {
		t.Fatalf("unexpected emission: %v", values(got))
	}
	if !res.Persisted || res.Mode != ModeCold {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.st.Fingerprint != storage.Fingerprint(feed) || len(store.st.Notices) != 3 {
		t.Fatalf("store not updated: %+v", store.st)
	}
	if r.State().LastKnownCount != 3 {
		t.Fatalf("unexpected count: %+v", r.State())
	}
}

func TestColdStartEmptyBaselineEmitsOldestFirst(t *testing.T) {
	feed := []notice.Notice{n("C"), n("B"), n("A")}
	store := &memStore{}
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed}}, store, logx.Nop())

	var got []notice.Notice
	if _, err := r.Reconcile(context.Background(), collect(&got)); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !equalStrings(values(got), []string{"A", "B", "C"}) {
		t.Fatalf("unexpected order: %v", values(got))
	}
}

func TestColdStartCorruptStateTreatedAsEmpty(t *testing.T) {
	feed := []notice.Notice{n("B"), n("A")}
	store := &memStore{loadErr: errors.New("bad json")}
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed}}, store, logx.Nop())

	var got []notice.Notice
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !equalStrings(values(got), []string{"A", "B"}) || !res.Persisted {
		t.Fatalf("unexpected result %+v / %v", res, values(got))
	}
}

func TestColdStartPersistFailureStillTransitions(t *testing.T) {
	feed := []notice.Notice{n("A")}
	store := &memStore{saveErr: errors.New("disk full")}
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed}}, store, logx.Nop())

	var got []notice.Notice
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Persisted {
		t.Fatalf("expected Persisted=false")
	}
	if len(got) != 1 {
		t.Fatalf("expected emission before persist, got %v", values(got))
	}
	if st := r.State(); !st.Initialized || st.LastKnownCount != 1 {
		t.Fatalf("expected transition, got %+v", st)
	}
}

func TestWarmGrowth(t *testing.T) {
	first := []notice.Notice{n("A"), n("B")}
	grown := []notice.Notice{n("E"), n("D"), n("C"), n("A"), n("B")}
	store := &memStore{st: storage.State{Fingerprint: storage.Fingerprint(first), Notices: first}}
	r := New(&fakeFeed{feeds: [][]notice.Notice{first, grown}}, store, logx.Nop())

	if _, err := r.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("cold: %v", err)
	}
	savesBefore := store.saves

	var got []notice.Notice
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	// indices 2, 1, 0 in that order
	if !equalStrings(values(got), []string{"C", "D", "E"}) {
		t.Fatalf("unexpected emission: %v", values(got))
	}
	if res.Mode != ModeWarm || res.Emitted != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.saves != savesBefore {
		t.Fatalf("warm pass wrote storage")
	}
	if st := r.State(); st.LastKnownCount != 5 || !st.Dirty {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestWarmNoGrowth(t *testing.T) {
	first := []notice.Notice{n("A"), n("B")}
	cases := []struct {
		name string
		feed []notice.Notice
	}{
		{"same feed", first},
		{"same length different content", []notice.Notice{n("Y"), n("Z")}},
		{"shrunk", []notice.Notice{n("A")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{st: storage.State{Fingerprint: storage.Fingerprint(first), Notices: first}}
			r := New(&fakeFeed{feeds: [][]notice.Notice{first, tc.feed}}, store, logx.Nop())

			if _, err := r.Reconcile(context.Background(), nil); err != nil {
				t.Fatalf("cold: %v", err)
			}
			var got []notice.Notice
			res, err := r.Reconcile(context.Background(), collect(&got))
			if err != nil {
				t.Fatalf("warm: %v", err)
			}
			if res.Mode != ModeWarm || res.Emitted != 0 || len(got) != 0 {
				t.Fatalf("expected no emission, got %+v %v", res, values(got))
			}
			if st := r.State(); st.LastKnownCount != 2 || st.Dirty {
				t.Fatalf("unexpected state: %+v", st)
			}
			if store.saves != 0 {
				t.Fatalf("unexpected saves: %d", store.saves)
			}
		})
	}
}

func TestFetchErrorAbortsPass(t *testing.T) {
	feed := []notice.Notice{n("A")}
	store := &memStore{}
	boom := errors.New("timeout")
	r := New(&fakeFeed{feeds: [][]notice.Notice{feed, feed}, errs: []error{boom}}, store, logx.Nop())

	var got []notice.Notice
	if _, err := r.Reconcile(context.Background(), collect(&got)); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(got) != 0 || store.loads != 0 || store.saves != 0 {
		t.Fatalf("fetch error must not touch storage or emit")
	}
	if r.State().Initialized {
		t.Fatalf("state must stay cold after fetch error")
	}

	// Next pass is still cold.
	res, err := r.Reconcile(context.Background(), collect(&got))
	if err != nil || res.Mode != ModeCold || len(got) != 1 {
		t.Fatalf("expected cold retry, got %+v %v %v", res, err, values(got))
	}
}

func TestCheckpoint(t *testing.T) {
	first := []notice.Notice{n("A")}
	grown := []notice.Notice{n("B"), n("A")}
	store := &memStore{st: storage.State{Fingerprint: storage.Fingerprint(first), Notices: first}}
	r := New(&fakeFeed{feeds: [][]notice.Notice{first, grown}}, store, logx.Nop())

	if _, err := r.Checkpoint(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := r.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("cold: %v", err)
	}
	if saved, err := r.Checkpoint(context.Background()); err != nil || saved {
		t.Fatalf("clean state must not be saved: %v %v", saved, err)
	}
	if _, err := r.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("warm: %v", err)
	}
	saved, err := r.Checkpoint(context.Background())
	if err != nil || !saved {
		t.Fatalf("expected checkpoint save, got %v %v", saved, err)
	}
	if store.st.Fingerprint != storage.Fingerprint(grown) {
		t.Fatalf("checkpoint stored wrong snapshot")
	}
	if r.State().Dirty {
		t.Fatalf("dirty flag not cleared")
	}
}
