package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishNoteEvent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "llm", "what-is-rag")

	s := recv(t, ch)
	if !strings.HasPrefix(s, "id: 1\nevent: note.created\n") {
		t.Errorf("unexpected frame header in %q", s)
	}
	if !strings.Contains(s, `data: {"slug":"what-is-rag","category":"llm"}`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestPublishNoteEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("renamed", "llm", "x")
	b.PublishNoteEvent("deleted", "llm", "x")

	if s := recv(t, ch); !strings.Contains(s, "event: note.deleted") {
		t.Errorf("first delivered event = %q, want note.deleted", s)
	}
}

func TestPublishRefresh_Throttle(t *testing.T) {
	b := NewBroker(WithRefreshThrottle(500 * time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRefresh(RefreshSummary{Notes: 3})
	b.PublishRefresh(RefreshSummary{Notes: 4})

	time.Sleep(50 * time.Millisecond)
	var got []string
loop:
	for {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		default:
			break loop
		}
	}
	if len(got) != 1 || !strings.Contains(got[0], `"notes":3`) {
		t.Errorf("refresh events = %q, want only the first", got)
	}
}

func TestSubscribeFrom_ReplaysMissedEvents(t *testing.T) {
	b := NewBroker(WithHistory(2))
	defer b.Close()

	for _, slug := range []string{"a", "b", "c"} {
		b.PublishNoteEvent("updated", "llm", slug)
	}
	ch := b.SubscribeFrom(2)
	defer b.Unsubscribe(ch)
	if s := recv(t, ch); !strings.HasPrefix(s, "id: 3\n") {
		t.Errorf("replayed %q, want id 3", s)
	}

	old := b.SubscribeFrom(0)
	defer b.Unsubscribe(old)
	// Only the last two frames are retained.
	for _, want := range []string{"id: 2\n", "id: 3\n"} {
		if s := recv(t, old); !strings.HasPrefix(s, want) {
			t.Errorf("replayed %q, want prefix %q", s, want)
		}
	}

	fresh := b.Subscribe()
	defer b.Unsubscribe(fresh)
	b.PublishNoteEvent("created", "llm", "d")
	if s := recv(t, fresh); !strings.HasPrefix(s, "id: 4\n") {
		t.Errorf("fresh subscriber got %q, want id 4 only", s)
	}
}

func TestObserverSeesBroadcasts(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	b := NewBroker(WithObserver(func(typ string) {
		mu.Lock()
		seen = append(seen, typ)
		mu.Unlock()
	}))
	defer b.Close()

	b.PublishNoteEvent("created", "llm", "x")
	b.PublishRefresh(RefreshSummary{})
	b.PublishRefresh(RefreshSummary{}) // throttled, not observed
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, ",") != TypeNoteCreated+","+TypeNotesRefreshed {
		t.Errorf("observed %v", seen)
	}
}

// lockedRecorder guards the body so the test can read it while the handler
// is still writing.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Body.String()
}

func serve(b *Broker, req *http.Request) (*lockedRecorder, chan struct{}) {
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	return w, done
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(WithHeartbeat(20 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w, done := serve(b, req)

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishNoteEvent("updated", "llm", "x")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.HasPrefix(body, "retry: 3000\n\n") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("handler output missing heartbeat: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_LastEventID(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	b.PublishNoteEvent("created", "llm", "a")
	b.PublishNoteEvent("created", "llm", "b")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Last-Event-ID", "1")
	w, done := serve(b, req)

	time.Sleep(50 * time.Millisecond)
	b.Close()
	<-done

	body := w.body()
	if strings.Contains(body, "id: 1\n") || !strings.Contains(body, "id: 2\n") {
		t.Errorf("replay = %q, want only id 2", body)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(WithHistory(0))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	if len(ch) != clientBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.PublishNoteEvent("updated", "llm", "x")
	b.PublishRefresh(RefreshSummary{})
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close must return a closed channel")
	}
	b.Close()
}
