package slideshow

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"davslide/internal/apperr"
	"davslide/internal/fetch"
)

type stubLister struct {
	names []string
	err   error
	calls atomic.Int32
}

func (s *stubLister) ListImages(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.names, s.err
}

type stubGetter struct {
	err     error
	block   chan struct{} // when set, GetImage waits for a receive
	calls   atomic.Int32
	lastReq atomic.Value
}

func (s *stubGetter) GetImage(ctx context.Context, name string, w, h int) (*fetch.Entry, error) {
	s.calls.Add(1)
	s.lastReq.Store(name)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Entry{Name: name}, nil
}

// recorder collects emitted events on a channel so tests can wait for them.
type recorder struct {
	ch chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 256)}
}

func (r *recorder) sink(ev Event) { r.ch <- ev }

// wait returns the next event of the wanted type, discarding others.
func (r *recorder) wait(t *testing.T, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func startOrchestrator(t *testing.T, opts Options, lister Lister, getter Getter) (*Orchestrator, *recorder) {
	t.Helper()
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = time.Hour
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = time.Hour
	}
	rec := newRecorder()
	o := New(opts, lister, getter, rec.sink)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go o.Run(ctx)
	return o, rec
}

func TestPickNext_SequentialWraparound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name    string
		current int
		n       int
		dir     Direction
		want    int
	}{
		{"first next lands on 0", -1, 3, Next, 0},
		{"next increments", 0, 3, Next, 1},
		{"next wraps at end", 2, 3, Next, 0},
		{"previous decrements", 1, 3, Previous, 0},
		{"previous wraps at 0", 0, 3, Previous, 2},
		{"previous from none lands on last", -1, 3, Previous, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickNext(tt.current, tt.n, false, tt.dir, rng)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickNext_RandomNeverRepeats(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	current := -1
	for i := 0; i < 1000; i++ {
		next, ok := pickNext(current, 5, true, Next, rng)
		require.True(t, ok)
		require.NotEqual(t, current, next, "trial %d repeated index %d", i, next)
		current = next
	}
}

func TestPickNext_RandomSingleEntry(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	next, ok := pickNext(0, 1, true, Next, rng)
	require.True(t, ok)
	assert.Equal(t, 0, next)
}

func TestPickNext_RandomPreviousIsNoOp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := pickNext(2, 5, true, Previous, rng)
	assert.False(t, ok)
}

func TestPickNext_EmptyList(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := pickNext(-1, 0, false, Next, rng)
	assert.False(t, ok)
}

func TestOrchestrator_SequentialEndToEnd(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg", "c.jpg"}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)

	ev := rec.wait(t, EventListReceived)
	assert.Equal(t, 3, ev.Count)

	o.Next()
	ev = rec.wait(t, EventImageReady)
	assert.Equal(t, "a.jpg", ev.Entry.Name)

	o.Next()
	ev = rec.wait(t, EventImageReady)
	assert.Equal(t, "b.jpg", ev.Entry.Name)

	o.Previous()
	ev = rec.wait(t, EventImageReady)
	assert.Equal(t, "a.jpg", ev.Entry.Name)

	snap := o.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "a.jpg", snap.Current)
	assert.Equal(t, "idle", snap.State)
}

func TestOrchestrator_AdvanceWhileTransitioningIsDropped(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg"}}
	getter := &stubGetter{block: make(chan struct{})}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)
	rec.wait(t, EventListReceived)

	o.Next()
	rec.wait(t, EventProgress) // the "loading a.jpg" progress marker

	// A second advance while the swap is in flight must be dropped.
	o.Next()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), getter.calls.Load())

	getter.block <- struct{}{}
	ev := rec.wait(t, EventImageReady)
	assert.Equal(t, "a.jpg", ev.Entry.Name)

	snap := o.Snapshot()
	assert.Equal(t, 0, snap.Index, "dropped advance must not move the position")
	assert.Equal(t, int32(1), getter.calls.Load())
}

func TestOrchestrator_RefreshResetsIndexEvenForIdenticalList(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg"}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)
	rec.wait(t, EventListReceived)

	o.Next()
	rec.wait(t, EventImageReady)
	require.Equal(t, 0, o.Snapshot().Index)

	o.Refresh()
	rec.wait(t, EventListReceived)
	assert.Equal(t, -1, o.Snapshot().Index)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestOrchestrator_EmptyListIsReportedNotFatal(t *testing.T) {
	lister := &stubLister{names: []string{}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)

	ev := rec.wait(t, EventListReceived)
	assert.Equal(t, 0, ev.Count)

	ev = rec.wait(t, EventError)
	var ele *apperr.EmptyListError
	assert.True(t, errors.As(ev.Err, &ele))

	// An advance against the empty list requests nothing.
	o.Next()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), getter.calls.Load())
}

func TestOrchestrator_FetchFailureIsSurfaced(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg"}}
	getter := &stubGetter{err: &apperr.NetworkError{Status: 502, URL: "a.jpg"}}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)
	rec.wait(t, EventListReceived)

	o.Next()
	ev := rec.wait(t, EventError)
	var ne *apperr.NetworkError
	require.True(t, errors.As(ev.Err, &ne))
	assert.Equal(t, 502, ne.Status)

	// The slideshow survives a failed image.
	assert.Equal(t, "idle", o.Snapshot().State)
}

func TestOrchestrator_ListFailureIsSurfaced(t *testing.T) {
	lister := &stubLister{err: &apperr.TimeoutError{Op: "list images"}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{}, lister, getter)

	ev := rec.wait(t, EventError)
	var te *apperr.TimeoutError
	require.True(t, errors.As(ev.Err, &te))

	// Without a first list the slideshow never leaves its initial state.
	assert.Equal(t, "stopped", o.Snapshot().State)
	assert.Equal(t, int32(0), getter.calls.Load())
}

func TestOrchestrator_AutoStartRequestsFirstImage(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg"}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{}, lister, getter)

	ev := rec.wait(t, EventImageReady)
	assert.Equal(t, "a.jpg", ev.Entry.Name)
	assert.Equal(t, "playing", o.Snapshot().State)
}

func TestOrchestrator_ToggleAndPause(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg"}}
	getter := &stubGetter{}
	o, rec := startOrchestrator(t, Options{StartPaused: true}, lister, getter)
	rec.wait(t, EventListReceived)
	assert.Equal(t, "idle", o.Snapshot().State)

	o.Toggle()
	rec.wait(t, EventImageReady)
	assert.Equal(t, "playing", o.Snapshot().State)

	o.Pause()
	require.Eventually(t, func() bool {
		return o.Snapshot().State == "idle"
	}, 2*time.Second, 10*time.Millisecond)

	o.Toggle()
	rec.wait(t, EventImageReady)
	assert.Equal(t, "playing", o.Snapshot().State)
}

func TestOrchestrator_AdvanceTimerDrivesPlayback(t *testing.T) {
	lister := &stubLister{names: []string{"a.jpg", "b.jpg", "c.jpg"}}
	getter := &stubGetter{}
	_, rec := startOrchestrator(t, Options{UpdateInterval: 30 * time.Millisecond}, lister, getter)

	// First image comes from auto-start, the rest from the timer.
	first := rec.wait(t, EventImageReady)
	assert.Equal(t, "a.jpg", first.Entry.Name)
	second := rec.wait(t, EventImageReady)
	assert.Equal(t, "b.jpg", second.Entry.Name)
	third := rec.wait(t, EventImageReady)
	assert.Equal(t, "c.jpg", third.Entry.Name)
}
