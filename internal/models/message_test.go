package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidType(t *testing.T) {
	for _, mt := range MessageTypes {
		if !ValidType(mt) {
			t.Errorf("ValidType(%q) = false, want true", mt)
		}
	}
	for _, bad := range []MessageType{"", "TASK", "task_delegation", "GOSSIP"} {
		if ValidType(bad) {
			t.Errorf("ValidType(%q) = true, want false", bad)
		}
	}
}

func TestMessageTypes_Count(t *testing.T) {
	if len(MessageTypes) != 9 {
		t.Errorf("len(MessageTypes) = %d, want 9", len(MessageTypes))
	}
}

func TestSetPayload_Nil(t *testing.T) {
	var m Message
	if err := m.SetPayload(nil); err != nil {
		t.Fatalf("SetPayload(nil): %v", err)
	}
	if m.Payload != "{}" {
		t.Errorf("Payload = %q, want %q", m.Payload, "{}")
	}
}

func TestPayloadMap_Empty(t *testing.T) {
	var m Message
	p, err := m.PayloadMap()
	if err != nil {
		t.Fatalf("PayloadMap: %v", err)
	}
	if len(p) != 0 {
		t.Errorf("len(p) = %d, want 0", len(p))
	}
}

func TestPayloadMap_Corrupt(t *testing.T) {
	m := Message{ID: 7, Payload: "{not json"}
	_, err := m.PayloadMap()
	if err == nil {
		t.Fatal("expected error for corrupt payload")
	}
	if !strings.Contains(err.Error(), "message 7") {
		t.Errorf("error = %q, want to name the message id", err)
	}
}

func TestMessage_JSONWireShape(t *testing.T) {
	ackAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Message{
		ID:             42,
		Sender:         "atlas",
		Recipient:      "hermes",
		Type:           TypeTaskDelegation,
		ContextID:      "ctx-1",
		Status:         StatusAcknowledged,
		AcknowledgedBy: "hermes",
		AcknowledgedAt: &ackAt,
		CreatedAt:      time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	if err := m.SetPayload(map[string]any{"task_id": "T1"}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"payload":{"task_id":"T1"}`) {
		t.Errorf("wire shape missing decoded payload: %s", s)
	}
	if !strings.Contains(s, `"type":"TASK_DELEGATION"`) {
		t.Errorf("wire shape missing type: %s", s)
	}
	if strings.Contains(s, `"Payload"`) {
		t.Errorf("raw payload column leaked into wire shape: %s", s)
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.ID != 42 || back.Sender != "atlas" || back.Type != TypeTaskDelegation {
		t.Errorf("round trip mismatch: %+v", back)
	}
	p, err := back.PayloadMap()
	if err != nil {
		t.Fatalf("PayloadMap: %v", err)
	}
	if p["task_id"] != "T1" {
		t.Errorf("payload task_id = %v, want T1", p["task_id"])
	}
}
