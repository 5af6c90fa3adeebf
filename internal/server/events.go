package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"davslide/internal/slideshow"
)

// DefaultMaxEvents bounds the in-memory event log.
const DefaultMaxEvents = 100

// EventRecord is one orchestrator event in wire form.
type EventRecord struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Count   int       `json:"count,omitempty"`
	Image   string    `json:"image,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// EventLog keeps the most recent orchestrator events and fans new ones out
// to live subscribers. Slow subscribers miss events rather than block the
// orchestrator.
type EventLog struct {
	mu        sync.Mutex
	records   []EventRecord
	maxEvents int
	subs      map[chan EventRecord]struct{}
}

// NewEventLog creates a log bounded to maxEvents records.
func NewEventLog(maxEvents int) *EventLog {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &EventLog{
		records:   make([]EventRecord, 0, maxEvents),
		maxEvents: maxEvents,
		subs:      make(map[chan EventRecord]struct{}),
	}
}

// Add records ev and broadcasts it.
func (l *EventLog) Add(ev slideshow.Event) EventRecord {
	rec := EventRecord{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Type:    string(ev.Type),
		Message: ev.Message,
		Count:   ev.Count,
	}
	if ev.Entry != nil {
		rec.Image = ev.Entry.Name
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > l.maxEvents {
		l.records = l.records[len(l.records)-l.maxEvents:]
	}
	for ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	l.mu.Unlock()
	return rec
}

// Recent returns a copy of the stored records, oldest first.
func (l *EventLog) Recent() []EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Subscribe registers a live event channel. The returned func unsubscribes.
func (l *EventLog) Subscribe() (<-chan EventRecord, func()) {
	ch := make(chan EventRecord, 16)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
	return ch, cancel
}
