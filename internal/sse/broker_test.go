package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/xmltable/internal/convert"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

func TestRunEventsDelivered(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.RunStarted(convert.Report{ID: "run-1", Status: convert.StatusRunning})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: run.started") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"run-1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestFileDone_ProgressThrottled(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.FileDone(convert.FileReport{RunID: "r", Path: "a.xml", Status: convert.StatusOK, Records: 2})
	b.FileDone(convert.FileReport{RunID: "r", Path: "b.xml", Status: convert.StatusOK, Records: 3})

	msgs := drain(ch)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "run.progress") {
		t.Fatalf("messages = %v, want one throttled progress event", msgs)
	}
}

func TestFileDone_FailuresAlwaysAnnounced(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.FileDone(convert.FileReport{RunID: "r", Path: "a.xml", Status: convert.StatusOK})
	b.FileDone(convert.FileReport{RunID: "r", Path: "bad.xml", Status: convert.StatusFailed})

	failed := 0
	for _, m := range drain(ch) {
		if strings.Contains(m, "event: file.failed") && strings.Contains(m, "bad.xml") {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("file.failed events = %d, want 1", failed)
	}
}

func progressFiles(t *testing.T, msgs []string) []string {
	t.Helper()
	var out []string
	for _, m := range msgs {
		if !strings.Contains(m, "event: run.progress") {
			continue
		}
		data := strings.TrimSpace(m[strings.Index(m, "data: ")+len("data: "):])
		var p struct {
			RunID string `json:"run_id"`
			Files int    `json:"files"`
		}
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		out = append(out, fmt.Sprintf("%s:%d", p.RunID, p.Files))
	}
	return out
}

func TestProgress_CountsResetPerRun(t *testing.T) {
	b := NewBroker(time.Nanosecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.RunStarted(convert.Report{ID: "r1"})
	b.FileDone(convert.FileReport{RunID: "r1", Path: "a.xml", Status: convert.StatusOK})
	b.FileDone(convert.FileReport{RunID: "r1", Path: "b.xml", Status: convert.StatusOK})
	// r1 never reports finished.
	b.RunStarted(convert.Report{ID: "r2"})
	b.FileDone(convert.FileReport{RunID: "r2", Path: "a.xml", Status: convert.StatusOK})
	b.RunDone(convert.Report{ID: "r2"})
	b.FileDone(convert.FileReport{RunID: "r3", Path: "a.xml", Status: convert.StatusOK})

	got := strings.Join(progressFiles(t, drain(ch)), " ")
	if got != "r1:1 r1:2 r2:1 r3:1" {
		t.Errorf("progress = %q", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.RunDone(convert.Report{ID: "r", Status: convert.StatusOK, Records: 4})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: run.finished") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

	// Should be safe no-op after close.
	b.RunDone(convert.Report{ID: "x"})
	b.FileDone(convert.FileReport{RunID: "x", Path: "a.xml"})
}
