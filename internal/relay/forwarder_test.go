package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/bus"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
)

func startTestBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := bus.NewServer(config.BusConfig{
		Port:    0, // random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)

	client, err := bus.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func publish(t *testing.T, client *bus.Client, sender, recipient string, typ models.MessageType) {
	t.Helper()
	if err := client.PublishMessage(&models.Message{
		Sender:    sender,
		Recipient: recipient,
		Type:      typ,
		Payload:   "{}",
	}); err != nil {
		t.Fatalf("PublishMessage: %v", err)
	}
}

func TestForwarder_ForwardsHumanRelevantTraffic(t *testing.T) {
	client := startTestBus(t)
	sender := NewMockSender()
	f := NewForwarder(sender, "zulandar")

	if err := f.Start(context.Background(), client); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	publish(t, client, "hermes", "maestro", models.TypeBlockerReport)
	publish(t, client, "maestro", models.BroadcastRecipient, models.TypeAnnouncement)
	publish(t, client, "maestro", "zulandar", models.TypeTaskCompleted)
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !eventually(t, 2*time.Second, func() bool { return len(sender.Posts()) == 3 }) {
		t.Fatalf("got %d posts, want 3", len(sender.Posts()))
	}
	posts := sender.Posts()
	if posts[0].Title != "BLOCKER_REPORT from hermes" {
		t.Errorf("posts[0].Title = %q", posts[0].Title)
	}
}

func TestForwarder_SkipsRoutineTraffic(t *testing.T) {
	client := startTestBus(t)
	sender := NewMockSender()
	f := NewForwarder(sender, "zulandar")

	if err := f.Start(context.Background(), client); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	publish(t, client, "maestro", "hermes", models.TypeTaskDelegation)
	publish(t, client, "hermes", "maestro", models.TypeProgressUpdate)
	// One forwardable message after the routine ones proves they were seen
	// and skipped, not still in flight.
	publish(t, client, "hermes", "maestro", models.TypeBlockerReport)
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !eventually(t, 2*time.Second, func() bool { return len(sender.Posts()) == 1 }) {
		t.Fatalf("got %d posts, want 1", len(sender.Posts()))
	}
	if got := sender.Posts()[0].Title; got != "BLOCKER_REPORT from hermes" {
		t.Errorf("forwarded %q, want the blocker", got)
	}
}

func TestForwarder_StartFailsWhenSenderCannotConnect(t *testing.T) {
	client := startTestBus(t)
	sender := NewMockSender()
	sender.SetConnectErr(errors.New("bad token"))
	f := NewForwarder(sender, "")

	if err := f.Start(context.Background(), client); err == nil {
		t.Fatal("expected error from Start")
	}
}

func TestForwarder_PostErrorDoesNotStopLoop(t *testing.T) {
	client := startTestBus(t)
	sender := NewMockSender()
	f := NewForwarder(sender, "")

	if err := f.Start(context.Background(), client); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	sender.SetPostErr(errors.New("slack is down"))
	publish(t, client, "hermes", "maestro", models.TypeBlockerReport)
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	sender.SetPostErr(nil)
	publish(t, client, "hermes", "maestro", models.TypeBlockerReport)
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !eventually(t, 2*time.Second, func() bool { return len(sender.Posts()) == 1 }) {
		t.Fatalf("got %d posts, want 1 after the sender recovered", len(sender.Posts()))
	}
}

func TestForwarder_StopClosesSender(t *testing.T) {
	client := startTestBus(t)
	sender := NewMockSender()
	f := NewForwarder(sender, "")

	if err := f.Start(context.Background(), client); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.Stop()

	if !sender.Closed() {
		t.Error("sender not closed after Stop")
	}
}

func TestForwarder_StopWithoutStart(t *testing.T) {
	f := NewForwarder(NewMockSender(), "")
	f.Stop() // must not panic
}

func TestShouldForward(t *testing.T) {
	f := NewForwarder(NewMockSender(), "zulandar")

	tests := []struct {
		name string
		msg  models.Message
		want bool
	}{
		{"blocker", models.Message{Type: models.TypeBlockerReport, Recipient: "maestro"}, true},
		{"announcement", models.Message{Type: models.TypeAnnouncement, Recipient: models.BroadcastRecipient}, true},
		{"addressed to human", models.Message{Type: models.TypeProgressUpdate, Recipient: "zulandar"}, true},
		{"routine", models.Message{Type: models.TypeProgressUpdate, Recipient: "maestro"}, false},
		{"delegation", models.Message{Type: models.TypeTaskDelegation, Recipient: "hermes"}, false},
	}
	for _, tt := range tests {
		if got := f.shouldForward(tt.msg); got != tt.want {
			t.Errorf("%s: shouldForward = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldForward_NoHumanConfigured(t *testing.T) {
	f := NewForwarder(NewMockSender(), "")
	m := models.Message{Type: models.TypeProgressUpdate, Recipient: "zulandar"}
	if f.shouldForward(m) {
		t.Error("forwarded agent traffic with no human configured")
	}
}
