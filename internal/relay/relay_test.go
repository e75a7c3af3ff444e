package relay

import (
	"testing"

	"github.com/zulandar/switchboard/internal/models"
)

func TestNotificationFor_Blocker(t *testing.T) {
	m := models.Message{
		ID:        3,
		Sender:    "hermes",
		Recipient: "maestro",
		Type:      models.TypeBlockerReport,
		ContextID: "deploy-7",
	}
	if err := m.SetPayload(map[string]any{"reason": "ci runner offline"}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}

	n := NotificationFor(m)

	if n.Title != "BLOCKER_REPORT from hermes" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Color != ColorError {
		t.Errorf("Color = %q, want %q", n.Color, ColorError)
	}
	if n.Body != "reason: ci runner offline" {
		t.Errorf("Body = %q", n.Body)
	}
	if len(n.Fields) != 3 {
		t.Fatalf("Fields has %d entries, want 3", len(n.Fields))
	}
	if n.Fields[2].Name != "Context" || n.Fields[2].Value != "deploy-7" {
		t.Errorf("Fields[2] = %+v", n.Fields[2])
	}
}

func TestNotificationFor_Colors(t *testing.T) {
	tests := []struct {
		typ  models.MessageType
		want string
	}{
		{models.TypeBlockerReport, ColorError},
		{models.TypeTaskCompleted, ColorSuccess},
		{models.TypeAnnouncement, ColorInfo},
		{models.TypeProgressUpdate, ColorInfo},
	}
	for _, tt := range tests {
		n := NotificationFor(models.Message{Type: tt.typ, Sender: "a", Recipient: "b"})
		if n.Color != tt.want {
			t.Errorf("color for %s = %q, want %q", tt.typ, n.Color, tt.want)
		}
	}
}

func TestNotificationFor_EmptyPayload(t *testing.T) {
	n := NotificationFor(models.Message{
		Type:      models.TypeAnnouncement,
		Sender:    "maestro",
		Recipient: models.BroadcastRecipient,
	})
	if n.Body != "" {
		t.Errorf("Body = %q, want empty", n.Body)
	}
	if len(n.Fields) != 2 {
		t.Errorf("Fields has %d entries, want 2 without a context", len(n.Fields))
	}
}

func TestNotificationFor_SortsPayloadKeys(t *testing.T) {
	m := models.Message{Type: models.TypeAnnouncement, Sender: "a", Recipient: "b"}
	if err := m.SetPayload(map[string]any{"zone": "us-east", "build": 107}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}

	n := NotificationFor(m)
	if n.Body != "build: 107\nzone: us-east" {
		t.Errorf("Body = %q", n.Body)
	}
}

func TestNotificationFor_CorruptPayloadFallsBack(t *testing.T) {
	m := models.Message{
		Type:      models.TypeAnnouncement,
		Sender:    "a",
		Recipient: "b",
		Payload:   `{not json`,
	}
	n := NotificationFor(m)
	if n.Body != `{not json` {
		t.Errorf("Body = %q, want the raw payload", n.Body)
	}
}
