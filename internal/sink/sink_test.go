package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	if err := s.Send(context.Background(), Progress("tile 1/3")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send(context.Background(), Done("export saved")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Type != TypeProgress || ev.Text != "tile 1/3" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRouter_FanOutAndFirstError(t *testing.T) {
	var buf bytes.Buffer
	ok := NewStdout(&buf)
	failErr := errors.New("backend down")
	fail := NewCallback(func(context.Context, Event) error { return failErr })
	var delivered atomic.Int32
	count := NewCallback(func(context.Context, Event) error {
		delivered.Add(1)
		return nil
	})

	r := NewRouter(nil, ok, fail, count)
	err := r.Send(context.Background(), Error("boom"))
	if !errors.Is(err, failErr) {
		t.Fatalf("Send error = %v, want first sink error", err)
	}
	if delivered.Load() != 1 {
		t.Error("later sinks should still receive the event")
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Error("first sink should have received the event")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		if ev.Type != TypeDone {
			t.Errorf("type = %q", ev.Type)
		}
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookClient(srv.Client()))
	if err := w.Send(context.Background(), Done("ok")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestWebhook_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(0), WithWebhookClient(srv.Client()))
	if err := w.Send(context.Background(), Progress("x")); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

func TestCallback_NilHandler(t *testing.T) {
	c := NewCallback(nil)
	if err := c.Send(context.Background(), Progress("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
