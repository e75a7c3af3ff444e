// Package bus provides the best-effort push channel layered over the durable
// message store. An embedded NATS server carries per-recipient inbox topics;
// subscribers see new messages without polling, and a subscriber that misses
// a push still finds the message in the store.
package bus

import (
	"fmt"
	"os"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/zulandar/switchboard/internal/config"
)

// Server is an embedded NATS server owned by the serve daemon.
type Server struct {
	srv *natsserver.Server
}

// NewServer starts an embedded NATS server and waits until it accepts
// connections.
func NewServer(cfg config.BusConfig) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("bus: create data dir: %w", err)
	}

	opts := &natsserver.Options{
		Port:      cfg.Port,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  cfg.DataDir,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("bus: create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("bus: nats server not ready")
	}

	return &Server{srv: ns}, nil
}

// ClientURL returns the URL clients use to connect.
func (s *Server) ClientURL() string {
	return s.srv.ClientURL()
}

// Close shuts the server down and waits for it to stop.
func (s *Server) Close() {
	s.srv.Shutdown()
	s.srv.WaitForShutdown()
}
