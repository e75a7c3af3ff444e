package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/zulandar/switchboard/internal/models"
)

// TopicInboxAll matches every recipient's inbox topic.
const TopicInboxAll = "a2a.msg.>"

// TopicInbox returns the push topic for a recipient's inbox.
func TopicInbox(recipient string) string {
	return fmt.Sprintf("a2a.msg.%s", recipient)
}

// Client wraps a NATS connection for publishing and subscribing to message
// push topics.
type Client struct {
	conn *nats.Conn
}

// Connect opens a NATS connection to the given URL.
func Connect(url string) (*Client, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// PublishMessage pushes a stored message to its recipient's inbox topic.
func (c *Client) PublishMessage(m *models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("bus: marshal message %d: %w", m.ID, err)
	}
	if err := c.conn.Publish(TopicInbox(m.Recipient), data); err != nil {
		return fmt.Errorf("bus: publish message %d: %w", m.ID, err)
	}
	return nil
}

// SubscribeInbox delivers pushed messages addressed to one recipient.
func (c *Client) SubscribeInbox(recipient string) (*Subscription, error) {
	return c.subscribe(TopicInbox(recipient))
}

// SubscribeAll delivers every pushed message regardless of recipient.
func (c *Client) SubscribeAll() (*Subscription, error) {
	return c.subscribe(TopicInboxAll)
}

func (c *Client) subscribe(topic string) (*Subscription, error) {
	s := &Subscription{ch: make(chan models.Message, 16)}
	sub, err := c.conn.Subscribe(topic, func(nm *nats.Msg) {
		var m models.Message
		if err := json.Unmarshal(nm.Data, &m); err != nil {
			log.Printf("bus: decode pushed message on %s: %v", nm.Subject, err)
			return
		}
		s.deliver(m)
	})
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", topic, err)
	}
	s.sub = sub
	return s, nil
}

// Flush blocks until published messages have been processed by the server.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Close drains the connection.
func (c *Client) Close() {
	c.conn.Close()
}

// Subscription carries pushed messages for one topic until cancelled.
// Delivery is best-effort: a consumer that falls behind loses pushes, not
// messages, because the store remains the source of truth.
type Subscription struct {
	mu     sync.Mutex
	closed bool
	ch     chan models.Message
	sub    *nats.Subscription
}

// C returns the channel of pushed messages. It is closed by Cancel.
func (s *Subscription) C() <-chan models.Message {
	return s.ch
}

// Cancel stops delivery and closes the channel. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.sub.Unsubscribe(); err != nil {
		log.Printf("bus: unsubscribe: %v", err)
	}
	close(s.ch)
}

func (s *Subscription) deliver(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
	}
}
