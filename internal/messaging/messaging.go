// Package messaging provides the durable agent-to-agent message store:
// send, inbox, threading, acknowledgment, unread counts, broadcast fan-out
// and retention cleanup.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/switchboard/internal/bus"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors, matched with errors.Is. The gateway maps them to HTTP
// status codes.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)

// DefaultInboxLimit caps Inbox results when the caller does not ask for a
// specific page size.
const DefaultInboxLimit = 50

// Client is the A2A messaging client. It owns no connections itself; the
// store handle and optional push bus are injected at startup.
type Client struct {
	db  *gorm.DB
	bus *bus.Client
}

// NewClient wraps a store handle.
func NewClient(gdb *gorm.DB) *Client {
	return &Client{db: gdb}
}

// AttachBus connects the push channel. Without one, Send is store-only and
// Subscribe reports ErrUnavailable.
func (c *Client) AttachBus(b *bus.Client) {
	c.bus = b
}

// Send validates and persists a message with status "sent", then best-effort
// pushes it to the bus. Unknown recipients are stored as-is; the store does
// not keep an agent roster.
func (c *Client) Send(sender, recipient string, typ models.MessageType, payload map[string]any, contextID string) (*models.Message, error) {
	if sender == "" {
		return nil, fmt.Errorf("messaging: sender is required: %w", ErrValidation)
	}
	if recipient == "" {
		return nil, fmt.Errorf("messaging: recipient is required: %w", ErrValidation)
	}
	if !models.ValidType(typ) {
		return nil, fmt.Errorf("messaging: unknown message type %q: %w", typ, ErrValidation)
	}

	msg := models.Message{
		Sender:    sender,
		Recipient: recipient,
		Type:      typ,
		ContextID: contextID,
		Status:    models.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
	if err := msg.SetPayload(payload); err != nil {
		return nil, fmt.Errorf("messaging: encode payload: %v: %w", err, ErrValidation)
	}

	if err := c.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("messaging: send: %w", err)
	}

	c.publish(&msg)
	return &msg, nil
}

// Inbox returns messages addressed to a recipient, newest first. An empty
// inbox is not an error.
func (c *Client) Inbox(recipient string, typ models.MessageType, limit int) ([]models.Message, error) {
	if recipient == "" {
		return nil, fmt.Errorf("messaging: recipient is required: %w", ErrValidation)
	}
	if typ != "" && !models.ValidType(typ) {
		return nil, fmt.Errorf("messaging: unknown message type %q: %w", typ, ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	q := c.db.Where("recipient = ?", recipient)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}

	var msgs []models.Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("messaging: inbox %s: %w", recipient, err)
	}
	return msgs, nil
}

// Thread returns every message sharing a context id, regardless of sender or
// recipient, in causal order. Messages created in the same clock tick keep
// their insertion order.
func (c *Client) Thread(contextID string) ([]models.Message, error) {
	if contextID == "" {
		return nil, fmt.Errorf("messaging: context id is required: %w", ErrValidation)
	}

	var msgs []models.Message
	if err := c.db.Where("context_id = ?", contextID).
		Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("messaging: thread %s: %w", contextID, err)
	}
	return msgs, nil
}

// Acknowledge transitions a message from sent to acknowledged. It is
// idempotent: acknowledging an already-acknowledged message is a no-op that
// returns the existing record, original acknowledger preserved. The
// transition is a single guarded UPDATE so concurrent acknowledgers cannot
// both win.
func (c *Client) Acknowledge(id uint, acknowledger string) (*models.Message, error) {
	if acknowledger == "" {
		return nil, fmt.Errorf("messaging: acknowledger is required: %w", ErrValidation)
	}

	now := time.Now().UTC()
	res := c.db.Model(&models.Message{}).
		Where("id = ? AND status = ?", id, models.StatusSent).
		Updates(map[string]any{
			"status":          models.StatusAcknowledged,
			"acknowledged_by": acknowledger,
			"acknowledged_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("messaging: acknowledge %d: %w", id, res.Error)
	}

	var msg models.Message
	if err := c.db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("messaging: message %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("messaging: acknowledge %d: %w", id, err)
	}
	return &msg, nil
}

// UnreadCount returns the number of unacknowledged messages addressed to an
// agent.
func (c *Client) UnreadCount(agent string) (int64, error) {
	if agent == "" {
		return 0, fmt.Errorf("messaging: agent is required: %w", ErrValidation)
	}

	var count int64
	if err := c.db.Model(&models.Message{}).
		Where("recipient = ? AND status = ?", agent, models.StatusSent).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("messaging: unread count %s: %w", agent, err)
	}
	return count, nil
}

// Cleanup deletes messages older than ageDays and returns the number
// removed. Age applies uniformly; acknowledged and unacknowledged messages
// are treated alike.
func (c *Client) Cleanup(ageDays int) (int64, error) {
	if ageDays <= 0 {
		return 0, fmt.Errorf("messaging: age days must be positive: %w", ErrValidation)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -ageDays)
	res := c.db.Where("created_at < ?", cutoff).Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("messaging: cleanup: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// BroadcastResult reports the outcome of one broadcast target.
type BroadcastResult struct {
	Target  string          `json:"target"`
	Message *models.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Broadcast sends one independent message per target. A failed target does
// not abort the rest; each target's outcome is reported separately.
func (c *Client) Broadcast(sender string, typ models.MessageType, payload map[string]any, targets []string) ([]BroadcastResult, error) {
	if sender == "" {
		return nil, fmt.Errorf("messaging: sender is required: %w", ErrValidation)
	}
	if !models.ValidType(typ) {
		return nil, fmt.Errorf("messaging: unknown message type %q: %w", typ, ErrValidation)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("messaging: at least one target is required: %w", ErrValidation)
	}

	results := make([]BroadcastResult, 0, len(targets))
	for _, target := range targets {
		msg, err := c.Send(sender, target, typ, payload, "")
		if err != nil {
			results = append(results, BroadcastResult{Target: target, Error: err.Error()})
			continue
		}
		results = append(results, BroadcastResult{Target: target, Message: msg})
	}
	return results, nil
}

// Health reports the store's availability.
type Health struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthCheck probes the store with a trivial read.
func (c *Client) HealthCheck(ctx context.Context) Health {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.Message{}).Count(&count).Error; err != nil {
		return Health{Status: "unhealthy", Detail: err.Error()}
	}
	return Health{Status: "healthy", Detail: fmt.Sprintf("%d messages stored", count)}
}

// Subscribe returns a push subscription for a recipient's inbox. The store
// remains the source of truth: consumers treat Acknowledge as their
// idempotency boundary and fall back to polling when pushes are missed.
func (c *Client) Subscribe(recipient string) (*bus.Subscription, error) {
	if recipient == "" {
		return nil, fmt.Errorf("messaging: recipient is required: %w", ErrValidation)
	}
	if c.bus == nil {
		return nil, fmt.Errorf("messaging: push channel not attached: %w", ErrUnavailable)
	}

	sub, err := c.bus.SubscribeInbox(recipient)
	if err != nil {
		return nil, fmt.Errorf("messaging: subscribe %s: %w", recipient, err)
	}
	return sub, nil
}

// publish pushes a stored message to the bus. Push is best-effort; failures
// are logged and never surfaced to the sender.
func (c *Client) publish(m *models.Message) {
	if c.bus == nil {
		return
	}
	if err := c.bus.PublishMessage(m); err != nil {
		log.Printf("messaging: push message %d: %v", m.ID, err)
	}
}
