package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/switchboard/internal/chain"
	"github.com/zulandar/switchboard/internal/health"
	"github.com/zulandar/switchboard/internal/messaging"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/platform"
)

// server carries the wired components the handlers dispatch into.
type server struct {
	messages *messaging.Client
	executor *chain.Executor
	registry *platform.Registry
	checker  *health.Aggregator
}

// registerRoutes wires up all API endpoints.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	s := &server{
		messages: opts.Messages,
		executor: opts.Executor,
		registry: opts.Registry,
		checker:  opts.Checker,
	}

	api := router.Group("/api")
	if opts.AuthToken != "" {
		api.Use(bearerAuth(opts.AuthToken))
	}

	api.GET("/health", s.handleHealth)
	api.POST("/messages", s.handleSend)
	api.GET("/messages", s.handleInbox)
	api.GET("/messages/thread/:context_id", s.handleThread)
	api.GET("/messages/unread", s.handleUnread)
	api.POST("/messages/broadcast", s.handleBroadcast)
	api.POST("/messages/:id/ack", s.handleAcknowledge)
	api.POST("/chains/execute", s.handleChainExecute)
	api.POST("/tools/:service/:operation", s.handleToolInvoke)
	api.GET("/events", s.handleEvents)
}

// abortError maps component sentinel errors onto HTTP status codes. Unmapped
// errors become an opaque 500; their detail goes to the log, not the caller.
func abortError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("gateway: %s %s: %v (id=%s)",
			c.Request.Method, c.Request.URL.Path, err, c.GetString(requestIDKey))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleHealth reports aggregate switchboard health. Degraded still answers,
// but as 503 so a load balancer can act on the status code alone.
func (s *server) handleHealth(c *gin.Context) {
	report := s.checker.Aggregate(c.Request.Context())
	status := http.StatusOK
	if report.Status != health.StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

type sendRequest struct {
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	ContextID string         `json:"context_id"`
}

func (s *server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	msg, err := s.messages.Send(req.Sender, req.Recipient, models.MessageType(req.Type), req.Payload, req.ContextID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *server) handleInbox(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	recipient := c.Query("recipient")
	msgs, err := s.messages.Inbox(recipient, models.MessageType(c.Query("type")), limit)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient": recipient, "messages": msgs, "count": len(msgs)})
}

func (s *server) handleThread(c *gin.Context) {
	contextID := c.Param("context_id")
	msgs, err := s.messages.Thread(contextID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context_id": contextID, "messages": msgs, "count": len(msgs)})
}

type ackRequest struct {
	Acknowledger string `json:"acknowledger"`
}

func (s *server) handleAcknowledge(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid message id %q", c.Param("id"))})
		return
	}

	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	msg, err := s.messages.Acknowledge(uint(id), req.Acknowledger)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *server) handleUnread(c *gin.Context) {
	agent := c.Query("agent")
	count, err := s.messages.UnreadCount(agent)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent, "unread": count})
}

type broadcastRequest struct {
	Sender  string         `json:"sender"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	Targets []string       `json:"targets"`
}

func (s *server) handleBroadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	results, err := s.messages.Broadcast(req.Sender, models.MessageType(req.Type), req.Payload, req.Targets)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"results": results, "count": len(results)})
}

type chainRequest struct {
	Steps   []chain.Step   `json:"steps"`
	Context map[string]any `json:"context"`
}

func (s *server) handleChainExecute(c *gin.Context) {
	var req chainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	// A halted chain is still a completed request; the outcome reports which
	// step failed.
	outcome := s.executor.Run(c.Request.Context(), req.Steps, req.Context)
	c.JSON(http.StatusOK, outcome)
}

// handleToolInvoke runs one adapter operation directly. The Result travels in
// the body and a failed Result is still HTTP 200: remote failure is data
// here, exactly as it is inside a chain.
func (s *server) handleToolInvoke(c *gin.Context) {
	params := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	service := c.Param("service")
	adapter, ok := s.registry.Lookup(service)
	if !ok {
		c.JSON(http.StatusOK, platform.Fail(platform.KindUnavailable, "unknown service: %s", service))
		return
	}
	c.JSON(http.StatusOK, adapter.Invoke(c.Request.Context(), c.Param("operation"), params))
}
