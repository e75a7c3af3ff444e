// Package discord implements the relay Sender for Discord embeds.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/switchboard/internal/relay"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration between retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff between retries.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender implements relay.Sender for Discord.
type Sender struct {
	sess        session
	botToken    string
	channelID   string
	mu          sync.Mutex
	connected   bool
	closed      bool
	baseBackoff time.Duration // retry base backoff (default: baseBackoff const)
	maxBackoff  time.Duration // retry max backoff (default: maxBackoff const)
}

// Opts holds parameters for creating a Discord Sender.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post notifications to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Sender.
func New(opts Opts) (*Sender, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}

	s := &Sender{
		botToken:    opts.BotToken,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		s.sess = opts.Session
	}
	return s, nil
}

// Connect opens the Discord gateway session.
func (s *Sender) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("discord: sender already closed")
	}
	if s.connected {
		return nil
	}

	if s.sess == nil {
		dg, err := discordgo.New("Bot " + s.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		s.sess = dg
	}

	if err := s.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	log.Printf("discord: gateway connected")

	s.connected = true
	return nil
}

// Post delivers one notification to the configured channel as an embed.
func (s *Sender) Post(ctx context.Context, n relay.Notification) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	sess := s.sess
	s.mu.Unlock()

	embed := notificationToEmbed(n)

	err := s.retryOnRateLimit(ctx, func() error {
		_, sendErr := sess.ChannelMessageSendEmbed(s.channelID, embed)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the gateway session.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.connected = false
	if s.sess != nil {
		return s.sess.Close()
	}
	return nil
}

// notificationToEmbed converts a Notification to a Discord Embed.
func notificationToEmbed(n relay.Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
	}

	if n.Color != "" {
		embed.Color = parseHexColor(n.Color)
	}

	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}

	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (s *Sender) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		if wait > s.maxBackoff {
			wait = s.maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
