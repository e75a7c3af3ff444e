// Package gateway exposes the switchboard over HTTP: message send and
// retrieval, chain execution, direct tool invocation, aggregate health and a
// server-sent event stream of inbox pushes. Agents are the intended clients;
// every response body is JSON except the event stream.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zulandar/switchboard/internal/chain"
	"github.com/zulandar/switchboard/internal/health"
	"github.com/zulandar/switchboard/internal/messaging"
	"github.com/zulandar/switchboard/internal/platform"
)

// requestIDKey is the gin context key under which the correlation id travels.
const requestIDKey = "request_id"

// StartOpts holds configuration for the gateway server.
type StartOpts struct {
	Messages *messaging.Client
	Executor *chain.Executor
	Registry *platform.Registry
	Checker  *health.Aggregator
	Port     int
	// AuthToken, when set, requires every request to carry it as a bearer
	// token. Empty disables auth.
	AuthToken string
	Out       io.Writer
}

// Start launches the gateway HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Messages == nil {
		return fmt.Errorf("gateway: messaging client is required")
	}
	if opts.Executor == nil {
		return fmt.Errorf("gateway: chain executor is required")
	}
	if opts.Registry == nil {
		return fmt.Errorf("gateway: platform registry is required")
	}
	if opts.Checker == nil {
		return fmt.Errorf("gateway: health aggregator is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8360
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Gateway listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with middleware and routes. Split from
// Start so tests can drive the router without binding a port.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLog())
	registerRoutes(router, opts)
	return router
}

// requestID tags each request with a correlation id, either the caller's
// X-Request-ID or a freshly minted one, and echoes it on the response so
// clients can cite it when reporting a failure.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLog writes one line per completed request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("gateway: %s %s -> %d (%s) id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), c.GetString(requestIDKey))
	}
}

// bearerAuth rejects requests that do not carry the configured static token.
func bearerAuth(token string) gin.HandlerFunc {
	want := "Bearer " + token
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != want {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
