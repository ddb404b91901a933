// Package sse implements a Server-Sent Events broker that tells clients when
// the notes corpus changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeNoteCreated    = "note.created"
	TypeNoteUpdated    = "note.updated"
	TypeNoteDeleted    = "note.deleted"
	TypeNotesRefreshed = "notes.refreshed"
)

// Defaults.
const (
	DefaultRefreshThrottle = 2 * time.Second
	DefaultHistory         = 64

	retryMillis  = 3000
	clientBuffer = 64
)

// Event is one SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteChange is the payload of note.* events.
type NoteChange struct {
	Slug     string `json:"slug"`
	Category string `json:"category"`
}

// RefreshSummary is the payload of notes.refreshed events.
type RefreshSummary struct {
	Notes  int `json:"notes"`
	Failed int `json:"failed"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithRefreshThrottle sends notes.refreshed at most once per d.
func WithRefreshThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.refreshMin = d
		}
	}
}

// WithHeartbeat writes a comment line to idle connections every d. Zero
// disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithHistory keeps the last n frames for clients reconnecting with
// Last-Event-ID.
func WithHistory(n int) Option {
	return func(b *Broker) { b.historySize = max(n, 0) }
}

// WithObserver calls fn with the type of every broadcast event.
func WithObserver(fn func(eventType string)) Option {
	return func(b *Broker) { b.observe = fn }
}

type frame struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch     chan []byte
	lastID uint64
	resume bool
}

// Broker manages SSE client connections and broadcasts events.
//
// A single goroutine owns the client set, the id counter, the replay history
// and the refresh throttle. Public methods talk to it over channels.
type Broker struct {
	refreshMin  time.Duration
	heartbeat   time.Duration
	historySize int
	observe     func(string)

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	refreshCh     chan RefreshSummary
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop. Call Close to stop it.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		refreshMin:    DefaultRefreshThrottle,
		historySize:   DefaultHistory,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event),
		refreshCh:     make(chan RefreshSummary),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	history := make([]frame, 0, b.historySize)
	var lastRefresh time.Time
	var nextID uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		nextID++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", nextID, event.Type, payload))

		if b.historySize > 0 {
			if len(history) == b.historySize {
				history = append(history[:0], history[1:]...)
			}
			history = append(history, frame{id: nextID, raw: raw})
		}
		if b.observe != nil {
			b.observe(event.Type)
		}

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if !sub.resume {
				continue
			}
			for _, f := range history {
				if f.id <= sub.lastID {
					continue
				}
				select {
				case sub.ch <- f.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case sum := <-b.refreshCh:
			now := time.Now()
			if now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				broadcast(Event{Type: TypeNotesRefreshed, Data: sum})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes all client channels. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(subscription{ch: make(chan []byte, clientBuffer)})
}

// SubscribeFrom is Subscribe for a client that already saw events up to
// lastID. Retained frames with a larger id are queued first.
func (b *Broker) SubscribeFrom(lastID uint64) chan []byte {
	return b.subscribe(subscription{ch: make(chan []byte, clientBuffer), lastID: lastID, resume: true})
}

func (b *Broker) subscribe(sub subscription) chan []byte {
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}
	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients. It returns once the event
// loop has broadcast it.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a note change. kind is "created", "updated" or
// "deleted"; other kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, category, slug string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeNoteCreated
	case "updated":
		typ = TypeNoteUpdated
	case "deleted":
		typ = TypeNoteDeleted
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: NoteChange{Slug: slug, Category: category}})
}

// PublishRefresh publishes a throttled notes.refreshed event.
func (b *Broker) PublishRefresh(sum RefreshSummary) {
	if b.closed.Load() {
		return
	}
	select {
	case b.refreshCh <- sum:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). A client sending
// Last-Event-ID receives the retained events it missed.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var ch chan []byte
	if last, err := strconv.ParseUint(strings.TrimSpace(r.Header.Get("Last-Event-ID")), 10, 64); err == nil {
		ch = b.SubscribeFrom(last)
	} else {
		ch = b.Subscribe()
	}
	defer b.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
