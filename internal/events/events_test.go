package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHookAbsentIsNoop(t *testing.T) {
	var h Hook[ConnectEvent]

	if h.Present() {
		t.Error("zero Hook should be absent")
	}
	h.Fire(ConnectEvent{SSID: "x"}) // must not panic
}

func TestHookFire(t *testing.T) {
	n := NewNotifier()

	var got []SaveEvent
	n.Save.Set(func(e SaveEvent) { got = append(got, e) })

	n.Save.Fire(SaveEvent{SSID: "HomeNet", Password: "secret123"})
	if len(got) != 1 || got[0].SSID != "HomeNet" || got[0].Password != "secret123" {
		t.Errorf("received %+v", got)
	}

	n.Save.Clear()
	n.Save.Fire(SaveEvent{SSID: "Other"})
	if len(got) != 1 {
		t.Errorf("cleared hook still fired: %+v", got)
	}

	// Independent subscriptions
	if n.Connect.Present() || n.Disconnect.Present() {
		t.Error("unrelated hooks should stay absent")
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	hub.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	feed, err := Dial(ctx, strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = feed.Close() }()

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	n := NewNotifier()
	hub.Attach(n)
	n.Connect.Fire(ConnectEvent{SSID: "HomeNet", Address: "192.168.1.50"})
	n.Save.Fire(SaveEvent{SSID: "Office", Password: "secret123"})

	msg, err := feed.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg.Type != TypeConnected || msg.SSID != "HomeNet" || msg.Address != "192.168.1.50" {
		t.Errorf("first message = %+v", msg)
	}
	if !msg.Time.Equal(hub.Now()) {
		t.Errorf("message time = %v", msg.Time)
	}

	msg, err = feed.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg.Type != TypeSaved || msg.SSID != "Office" {
		t.Errorf("second message = %+v", msg)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	feed, err := Dial(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	<-done

	if _, err := feed.Next(); err == nil {
		t.Error("Next() should fail after the hub shuts down")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	finished := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(Message{Type: TypeDisconnected, SSID: "x"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked with no hub running")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
