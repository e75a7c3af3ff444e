package relay

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/switchboard/internal/bus"
	"github.com/zulandar/switchboard/internal/models"
)

// Forwarder subscribes to the full bus firehose and posts the human-relevant
// subset through a Sender.
type Forwarder struct {
	sender Sender
	human  string
	sub    *bus.Subscription
	done   chan struct{}
}

// NewForwarder creates a Forwarder. human names the agent whose inbox is
// mirrored to chat in addition to blockers and announcements; empty disables
// that rule.
func NewForwarder(sender Sender, human string) *Forwarder {
	return &Forwarder{sender: sender, human: human}
}

// Start connects the sender, subscribes to every recipient topic, and begins
// forwarding in the background until ctx is cancelled or Stop is called.
func (f *Forwarder) Start(ctx context.Context, client *bus.Client) error {
	if err := f.sender.Connect(ctx); err != nil {
		return fmt.Errorf("relay: connect sender: %w", err)
	}
	sub, err := client.SubscribeAll()
	if err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}
	f.sub = sub
	f.done = make(chan struct{})
	go f.loop(ctx)
	return nil
}

// Stop cancels the subscription, waits for the loop to drain, and closes the
// sender. Safe to call when Start never ran.
func (f *Forwarder) Stop() {
	if f.sub == nil {
		return
	}
	f.sub.Cancel()
	<-f.done
	if err := f.sender.Close(); err != nil {
		log.Printf("relay: close sender: %v", err)
	}
}

func (f *Forwarder) loop(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-f.sub.C():
			if !ok {
				return
			}
			if !f.shouldForward(m) {
				continue
			}
			if err := f.sender.Post(ctx, NotificationFor(m)); err != nil {
				log.Printf("relay: post notification for message %d: %v", m.ID, err)
			}
		}
	}
}

// shouldForward picks out the traffic humans need to see.
func (f *Forwarder) shouldForward(m models.Message) bool {
	if m.Type == models.TypeBlockerReport || m.Type == models.TypeAnnouncement {
		return true
	}
	return f.human != "" && m.Recipient == f.human
}
