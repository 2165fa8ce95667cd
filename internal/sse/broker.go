// Package sse implements a Server-Sent Events broker for conversion progress.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/xmltable/internal/convert"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// fileDoneEvent carries a convert.FileReport through the publish queue so it
// is ordered with run events. It is never sent to clients.
const fileDoneEvent = "file.done"

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, progress throttle timestamp and the current run's counters). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	progressMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given progress throttle interval.
func NewBroker(progressThrottle time.Duration) *Broker {
	if progressThrottle <= 0 {
		progressThrottle = 2 * time.Second
	}

	b := &Broker{
		progressMin:   progressThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastProgress time.Time
	// Progress counters cover one run at a time.
	var current struct {
		runID          string
		files, records int
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			switch event.Type {
			case "run.started":
				if data, ok := event.Data.(convert.Report); ok {
					current.runID, current.files, current.records = data.ID, 0, 0
				}
			case "run.finished":
				if data, ok := event.Data.(convert.Report); ok && data.ID == current.runID {
					current.runID, current.files, current.records = "", 0, 0
				}
			case fileDoneEvent:
				f, ok := event.Data.(convert.FileReport)
				if !ok {
					continue
				}
				if f.RunID != current.runID {
					current.runID, current.files, current.records = f.RunID, 0, 0
				}
				current.files++
				current.records += f.Records
				if f.Status == convert.StatusFailed {
					broadcast(Event{Type: "file.failed", Data: map[string]string{"run_id": f.RunID, "path": f.Path}})
				}

				now := time.Now()
				if now.Sub(lastProgress) >= b.progressMin {
					lastProgress = now
					broadcast(Event{Type: "run.progress", Data: map[string]any{
						"run_id":  f.RunID,
						"files":   current.files,
						"records": current.records,
						"path":    f.Path,
					}})
				}
				continue
			}
			broadcast(event)

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

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// RunStarted implements convert.Observer.
func (b *Broker) RunStarted(r convert.Report) {
	b.Publish(Event{Type: "run.started", Data: r})
}

// RunDone implements convert.Observer.
func (b *Broker) RunDone(r convert.Report) {
	b.Publish(Event{Type: "run.finished", Data: r})
}

// FileDone implements convert.Observer. Failures are always announced;
// progress is throttled.
func (b *Broker) FileDone(f convert.FileReport) {
	b.Publish(Event{Type: fileDoneEvent, Data: f})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

var _ convert.Observer = (*Broker)(nil)
