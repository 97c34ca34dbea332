// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 25 * time.Second

// Event types.
const (
	TypeGraphUpdated = "graph.updated"
	TypeNotification = "notification"
	TypeSessionEnded = "session.ended"
	TypeDraftCreated = "draft.created"
	TypeDraftUpdated = "draft.updated"
	TypeDraftDeleted = "draft.deleted"
)

// Event represents an SSE event to broadcast. Events with a Session are
// delivered only to clients watching that session or watching everything.
type Event struct {
	Type    string      `json:"type"`
	Session string      `json:"-"`
	Data    interface{} `json:"data"`
}

type graphChangeReq struct {
	session string
	version uint64
}

type subscription struct {
	ch      chan []byte
	session string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-session graph throttle state). Public methods communicate
// with this loop through channels, so no mutexes are required.
//
// A graph change that arrives inside the throttle window is held back and the
// latest held version is sent when the window ends.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	graphCh       chan graphChangeReq
	flushCh       chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		graphCh:       make(chan graphChangeReq, 256),
		flushCh:       make(chan string),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastGraph := make(map[string]time.Time)
	pending := make(map[string]uint64)
	timers := make(map[string]*time.Timer)
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, watching := range clients {
			if event.Session != "" && watching != "" && watching != event.Session {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	sendGraph := func(session string, version uint64) {
		lastGraph[session] = time.Now()
		broadcast(Event{
			Type:    TypeGraphUpdated,
			Session: session,
			Data:    map[string]any{"session": session, "version": version},
		})
	}

	forget := func(session string) {
		if t, ok := timers[session]; ok {
			t.Stop()
			delete(timers, session)
		}
		delete(pending, session)
		delete(lastGraph, session)
	}

	for {
		select {
		case <-b.stopCh:
			for _, t := range timers {
				t.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.session

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			if event.Type == TypeSessionEnded {
				forget(event.Session)
			}
			broadcast(event)

		case req := <-b.graphCh:
			elapsed := time.Since(lastGraph[req.session])
			if elapsed >= b.graphMin {
				delete(pending, req.session)
				sendGraph(req.session, req.version)
				continue
			}
			pending[req.session] = req.version
			if _, ok := timers[req.session]; !ok {
				timers[req.session] = time.AfterFunc(b.graphMin-elapsed, func() {
					select {
					case b.flushCh <- req.session:
					case <-b.stopCh:
					}
				})
			}

		case session := <-b.flushCh:
			delete(timers, session)
			if version, ok := pending[session]; ok {
				delete(pending, session)
				sendGraph(session, version)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client watching session ("" watches every session)
// and returns its channel.
func (b *Broker) Subscribe(session string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, session: session}:
	case <-b.stopped:
		close(ch)
	}

	return ch
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

// Publish sends an event to all interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishGraphChange announces a new graph version for session. At most one
// graph.updated event per session is emitted per throttle interval; the last
// version of a burst is always delivered.
func (b *Broker) PublishGraphChange(session string, version uint64) {
	if b.closed.Load() {
		return
	}
	select {
	case b.graphCh <- graphChangeReq{session: session, version: version}:
	case <-b.stopped:
	}
}

// PublishDraftEvent publishes a draft file change (created, updated or
// deleted) to every client.
func (b *Broker) PublishDraftEvent(kind, path string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeDraftCreated
	case "updated":
		typ = TypeDraftUpdated
	case "deleted":
		typ = TypeDraftDeleted
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"path": path}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events?session=<id>).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("session"))
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
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
