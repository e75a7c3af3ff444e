// Package relay forwards selected bus traffic to human chat channels.
//
// Agents talk to each other through the message store; the relay is the
// one-way bridge that surfaces the subset humans care about (blockers,
// announcements, anything addressed to the configured human agent) into
// Slack or Discord. Delivery is best-effort: a failed post is logged and
// dropped, never retried against the store.
package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/switchboard/internal/models"
)

// Color constants for notification severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Field is one labeled value rendered alongside a notification.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notification is a platform-neutral human-facing message. Senders translate
// it to their platform's rich format (Slack attachment, Discord embed).
type Notification struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Sender posts notifications to one chat platform.
type Sender interface {
	Connect(ctx context.Context) error
	Post(ctx context.Context, n Notification) error
	Close() error
}

// NotificationFor renders a bus message as a human notification.
func NotificationFor(m models.Message) Notification {
	n := Notification{
		Title: fmt.Sprintf("%s from %s", m.Type, m.Sender),
		Color: colorFor(m.Type),
		Fields: []Field{
			{Name: "From", Value: m.Sender, Short: true},
			{Name: "To", Value: m.Recipient, Short: true},
		},
	}
	if m.ContextID != "" {
		n.Fields = append(n.Fields, Field{Name: "Context", Value: m.ContextID, Short: true})
	}

	payload, err := m.PayloadMap()
	if err != nil {
		n.Body = m.Payload
		return n
	}
	n.Body = renderPayload(payload)
	return n
}

func colorFor(t models.MessageType) string {
	switch t {
	case models.TypeBlockerReport:
		return ColorError
	case models.TypeTaskCompleted:
		return ColorSuccess
	default:
		return ColorInfo
	}
}

// renderPayload flattens a payload into sorted "key: value" lines.
func renderPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, payload[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
