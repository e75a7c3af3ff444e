package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeatInterval paces the keep-alive events that let clients distinguish
// a quiet stream from a dead connection.
const heartbeatInterval = 15 * time.Second

// handleEvents streams a recipient's inbox pushes as server-sent events.
// Every stored message also lands here via the bus, so a client that misses
// a push can always fall back to polling the inbox.
func (s *server) handleEvents(c *gin.Context) {
	recipient := c.Query("recipient")
	sub, err := s.messages.Subscribe(recipient)
	if err != nil {
		abortError(c, err)
		return
	}
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// Send connected event.
	writeSSE(c.Writer, "connected", map[string]string{"recipient": recipient})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.C():
			if !ok {
				return
			}
			writeSSE(c.Writer, "message", m)
			c.Writer.Flush()
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
