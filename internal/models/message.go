// Package models defines the GORM models and wire enumerations shared across
// Switchboard components.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType classifies an agent-to-agent message. The set is closed at any
// given version: Send rejects types outside it.
type MessageType string

const (
	TypeTaskDelegation MessageType = "TASK_DELEGATION"
	TypeTaskAccepted   MessageType = "TASK_ACCEPTED"
	TypeProgressUpdate MessageType = "PROGRESS_UPDATE"
	TypeTaskCompleted  MessageType = "TASK_COMPLETED"
	TypeBlockerReport  MessageType = "BLOCKER_REPORT"
	TypeRequestForInfo MessageType = "REQUEST_FOR_INFO"
	TypeStrategicQuery MessageType = "STRATEGIC_QUERY"
	TypeStatusRequest  MessageType = "STATUS_REQUEST"
	TypeAnnouncement   MessageType = "ANNOUNCEMENT"
)

// MessageTypes lists every valid message type, in declaration order.
var MessageTypes = []MessageType{
	TypeTaskDelegation,
	TypeTaskAccepted,
	TypeProgressUpdate,
	TypeTaskCompleted,
	TypeBlockerReport,
	TypeRequestForInfo,
	TypeStrategicQuery,
	TypeStatusRequest,
	TypeAnnouncement,
}

// ValidType reports whether t is a member of the closed message-type set.
func ValidType(t MessageType) bool {
	for _, mt := range MessageTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// MessageStatus tracks the acknowledgment state of a message. Transitions go
// sent → acknowledged, never backward.
type MessageStatus string

const (
	StatusSent         MessageStatus = "sent"
	StatusAcknowledged MessageStatus = "acknowledged"
)

// BroadcastRecipient is the sentinel recipient for messages addressed to
// every agent rather than one.
const BroadcastRecipient = "broadcast"

// Message represents one unit of agent-to-agent communication. IDs are
// server-assigned and immutable; CreatedAt is assigned by the store and is
// the ordering key for context threads, with ID breaking timestamp ties.
type Message struct {
	ID             uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Sender         string        `gorm:"size:64;not null;index" json:"sender"`
	Recipient      string        `gorm:"size:64;not null;index" json:"recipient"`
	Type           MessageType   `gorm:"size:32;not null;index" json:"type"`
	Payload        string        `gorm:"type:json" json:"-"`
	ContextID      string        `gorm:"size:64;index" json:"context_id,omitempty"`
	Status         MessageStatus `gorm:"size:16;default:sent;index" json:"status"`
	AcknowledgedBy string        `gorm:"size:64" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time     `gorm:"index" json:"created_at"`
}

// PayloadMap decodes the stored JSON payload. A missing payload decodes to an
// empty map so callers never branch on emptiness.
func (m *Message) PayloadMap() (map[string]any, error) {
	if m.Payload == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(m.Payload), &out); err != nil {
		return nil, fmt.Errorf("models: decode payload of message %d: %w", m.ID, err)
	}
	return out, nil
}

// SetPayload encodes payload as JSON into the stored column. A nil payload is
// stored as an empty JSON object.
func (m *Message) SetPayload(payload map[string]any) error {
	if payload == nil {
		m.Payload = "{}"
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("models: encode payload: %w", err)
	}
	m.Payload = string(data)
	return nil
}

// MarshalJSON renders the message with its payload decoded, which is the
// shape the gateway and the bus put on the wire.
func (m Message) MarshalJSON() ([]byte, error) {
	payload, err := m.PayloadMap()
	if err != nil {
		return nil, err
	}
	type alias Message
	return json.Marshal(struct {
		alias
		Payload map[string]any `json:"payload"`
	}{alias: alias(m), Payload: payload})
}

// UnmarshalJSON accepts the wire shape produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Payload map[string]any `json:"payload"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return m.SetPayload(aux.Payload)
}
