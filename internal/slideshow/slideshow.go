// Package slideshow manages the automatic cycling of content. One
// goroutine owns all playback state; commands, timer fires, and network
// completions arrive as messages, so ordering is established purely by
// arrival order and no field needs a lock.
package slideshow

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"davslide/internal/apperr"
	"davslide/internal/fetch"
)

// State is the playback state of the orchestrator.
type State int

const (
	// Stopped is the initial state, before any list has loaded.
	Stopped State = iota
	// Idle means a list is loaded but playback is paused.
	Idle
	// Playing means the advance timer is armed.
	Playing
	// Transitioning means an image swap is in flight; new advances are
	// dropped until it completes.
	Transitioning
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Transitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Direction selects which neighbour an advance moves to.
type Direction int

const (
	Next Direction = iota
	Previous
)

// EventType labels events emitted to the presentation layer.
type EventType string

const (
	EventListReceived EventType = "list-received"
	EventImageReady   EventType = "image-ready"
	EventError        EventType = "error"
	EventProgress     EventType = "progress"
)

// Event is one notification to the presentation layer.
type Event struct {
	Type    EventType
	Message string
	Count   int
	Entry   *fetch.Entry
	Err     error
}

// Lister produces one listing snapshot of the repository.
type Lister interface {
	ListImages(ctx context.Context) ([]string, error)
}

// Getter returns one image, from cache or network.
type Getter interface {
	GetImage(ctx context.Context, name string, width, height int) (*fetch.Entry, error)
}

// Options are the playback settings. Intervals are used as given; clamping
// happens at configuration load time.
type Options struct {
	UpdateInterval  time.Duration
	RefreshInterval time.Duration
	Random          bool
	StartPaused     bool
	Width           int
	Height          int
}

// Snapshot is a point-in-time copy of the playback state.
type Snapshot struct {
	State   string `json:"state"`
	Index   int    `json:"index"`
	Count   int    `json:"count"`
	Current string `json:"current,omitempty"`
	Running bool   `json:"running"`
}

type command int

const (
	cmdNext command = iota
	cmdPrevious
	cmdToggle
	cmdPause
	cmdResume
	cmdRefresh
)

type fetchResult struct {
	name  string
	entry *fetch.Entry
	err   error
}

type listResult struct {
	names []string
	err   error
}

// Orchestrator drives the slideshow: it owns the image list, decides which
// image is next, and manages the advance and refresh timers.
type Orchestrator struct {
	opts   Options
	lister Lister
	getter Getter
	sink   func(Event)
	rng    *rand.Rand

	cmds   chan command
	snaps  chan chan Snapshot
	fetchC chan fetchResult
	listC  chan listResult

	// Everything below is owned by the Run goroutine.
	list          []string
	index         int
	running       bool
	transitioning bool
	refreshing    bool
	started       bool
	advanceTimer  *time.Timer
	refreshTimer  *time.Timer
}

// New creates an Orchestrator. The sink is invoked from the Run goroutine,
// in order; it must not block for long.
func New(opts Options, lister Lister, getter Getter, sink func(Event)) *Orchestrator {
	if sink == nil {
		sink = func(Event) {}
	}
	return &Orchestrator{
		opts:   opts,
		lister: lister,
		getter: getter,
		sink:   sink,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cmds:   make(chan command, 16),
		snaps:  make(chan chan Snapshot),
		fetchC: make(chan fetchResult),
		listC:  make(chan listResult),
		index:  -1,
	}
}

// Next advances to the next image.
func (o *Orchestrator) Next() { o.cmds <- cmdNext }

// Previous steps back one image. No-op in random mode.
func (o *Orchestrator) Previous() { o.cmds <- cmdPrevious }

// Toggle flips between playing and paused.
func (o *Orchestrator) Toggle() { o.cmds <- cmdToggle }

// Pause stops the advance timer. An in-flight fetch is not cancelled.
func (o *Orchestrator) Pause() { o.cmds <- cmdPause }

// Resume restarts playback and immediately requests the next image.
func (o *Orchestrator) Resume() { o.cmds <- cmdResume }

// Refresh re-lists the repository, replacing the image list wholesale.
func (o *Orchestrator) Refresh() { o.cmds <- cmdRefresh }

// Snapshot returns a copy of the current playback state.
func (o *Orchestrator) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	o.snaps <- reply
	return <-reply
}

// Run executes the orchestrator loop until ctx is cancelled. It performs
// an immediate initial list refresh; the refresh timer keeps ticking even
// while playback is paused.
func (o *Orchestrator) Run(ctx context.Context) {
	o.advanceTimer = newStoppedTimer()
	o.refreshTimer = newStoppedTimer()
	defer o.advanceTimer.Stop()
	defer o.refreshTimer.Stop()

	o.startRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("slideshow stopped")
			return
		case cmd := <-o.cmds:
			o.handleCommand(ctx, cmd)
		case <-o.advanceTimer.C:
			if o.running {
				o.advance(ctx, Next)
			}
		case <-o.refreshTimer.C:
			o.startRefresh(ctx)
		case res := <-o.listC:
			o.handleListResult(ctx, res)
		case res := <-o.fetchC:
			o.handleFetchResult(res)
		case reply := <-o.snaps:
			reply <- o.snapshot()
		}
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, cmd command) {
	switch cmd {
	case cmdNext:
		o.advance(ctx, Next)
	case cmdPrevious:
		o.advance(ctx, Previous)
	case cmdToggle:
		if o.running {
			o.pause()
		} else {
			o.resume(ctx)
		}
	case cmdPause:
		o.pause()
	case cmdResume:
		o.resume(ctx)
	case cmdRefresh:
		o.startRefresh(ctx)
	}
}

func (o *Orchestrator) pause() {
	if !o.running {
		return
	}
	o.running = false
	stopTimer(o.advanceTimer)
	log.Info().Msg("slideshow paused")
	o.emit(Event{Type: EventProgress, Message: "paused"})
}

func (o *Orchestrator) resume(ctx context.Context) {
	if o.running {
		return
	}
	o.running = true
	log.Info().Msg("slideshow playing")
	o.emit(Event{Type: EventProgress, Message: "playing"})
	o.advance(ctx, Next)
}

// advance selects the next index and requests its image. While a
// transition is in flight the request is dropped; there is no queueing.
func (o *Orchestrator) advance(ctx context.Context, dir Direction) {
	if o.transitioning {
		log.Debug().Msg("transition in progress, advance dropped")
		return
	}
	if len(o.list) == 0 {
		log.Warn().Msg("advance requested with empty image list")
		if o.running {
			o.armAdvance()
		}
		return
	}

	next, ok := pickNext(o.index, len(o.list), o.opts.Random, dir, o.rng)
	if !ok {
		return
	}
	o.index = next
	name := o.list[next]

	o.transitioning = true
	stopTimer(o.advanceTimer)
	o.emit(Event{Type: EventProgress, Message: "loading " + name})

	go func() {
		entry, err := o.getter.GetImage(ctx, name, o.opts.Width, o.opts.Height)
		select {
		case o.fetchC <- fetchResult{name: name, entry: entry, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) handleFetchResult(res fetchResult) {
	o.transitioning = false
	if res.err != nil {
		log.Error().Err(res.err).Str("name", res.name).Msg("image fetch failed")
		o.emit(Event{Type: EventError, Message: "failed to load " + res.name, Err: res.err})
	} else {
		o.emit(Event{Type: EventImageReady, Entry: res.entry})
	}
	// Resilient to one failed image: the timer is re-armed either way, but
	// only while playing.
	if o.running {
		o.armAdvance()
	}
}

func (o *Orchestrator) startRefresh(ctx context.Context) {
	if o.refreshing {
		log.Debug().Msg("refresh already in flight")
		return
	}
	o.refreshing = true
	o.emit(Event{Type: EventProgress, Message: "refreshing image list"})
	go func() {
		names, err := o.lister.ListImages(ctx)
		select {
		case o.listC <- listResult{names: names, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) handleListResult(ctx context.Context, res listResult) {
	o.refreshing = false
	stopTimer(o.refreshTimer)
	o.refreshTimer.Reset(o.opts.RefreshInterval)

	if res.err != nil {
		log.Error().Err(res.err).Msg("list refresh failed")
		o.emit(Event{Type: EventError, Message: "failed to list images", Err: res.err})
		return
	}

	// The list is replaced wholesale and the position reset, even when the
	// new list is identical to the old one.
	o.list = res.names
	o.index = -1
	log.Info().Int("count", len(o.list)).Msg("image list received")
	o.emit(Event{Type: EventListReceived, Count: len(o.list)})

	if len(o.list) == 0 {
		o.emit(Event{Type: EventError, Message: "no images found", Err: &apperr.EmptyListError{}})
	}

	if !o.started {
		o.started = true
		if !o.opts.StartPaused {
			o.running = true
			o.advance(ctx, Next)
		}
	}
}

func (o *Orchestrator) armAdvance() {
	stopTimer(o.advanceTimer)
	o.advanceTimer.Reset(o.opts.UpdateInterval)
}

func (o *Orchestrator) snapshot() Snapshot {
	s := Snapshot{
		Index:   o.index,
		Count:   len(o.list),
		Running: o.running,
	}
	switch {
	case !o.started:
		s.State = Stopped.String()
	case o.transitioning:
		s.State = Transitioning.String()
	case o.running:
		s.State = Playing.String()
	default:
		s.State = Idle.String()
	}
	if o.index >= 0 && o.index < len(o.list) {
		s.Current = o.list[o.index]
	}
	return s
}

func (o *Orchestrator) emit(ev Event) {
	o.sink(ev)
}

// pickNext computes the next index. In random mode it re-rolls until the
// index differs from the current one, except for single-entry lists; a
// Previous in random mode is a no-op. Sequential mode wraps around in both
// directions, and the very first Next lands on index 0.
func pickNext(current, n int, random bool, dir Direction, rng *rand.Rand) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	if random {
		if dir == Previous {
			return 0, false
		}
		if n == 1 {
			return 0, true
		}
		next := current
		for next == current {
			next = rng.Intn(n)
		}
		return next, true
	}
	if dir == Previous {
		next := current - 1
		if next < 0 {
			next = n - 1
		}
		return next, true
	}
	return (current + 1) % n, true
}

// newStoppedTimer returns a timer that will not fire until Reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

// stopTimer stops t and drains a pending fire so a later Reset arms it
// cleanly.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
