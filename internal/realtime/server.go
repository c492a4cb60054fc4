// Package realtime serves the database change feed over WebSockets so
// separate terminal sessions see each other's writes, and provides the
// matching client.
//
// Wire format: a client connects to /realtime?table=<name> and receives
// one JSON text message per change event, shaped like
// {"event":"INSERT","schema":"public","table":"tasks"}.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tgienger/taskboard/internal/remote"
)

// FeedPath is the WebSocket endpoint
const FeedPath = "/realtime"

const writeTimeout = 5 * time.Second

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: 127.0.0.1:7420)
	Addr string

	// Source produces the change events to fan out
	Source remote.Subscriber

	// Logger for server activity (default: slog.Default())
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults. Source must still be set.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "127.0.0.1:7420",
		Logger: slog.Default(),
	}
}

type client struct {
	conn  *websocket.Conn
	table remote.Table
}

// Server fans change events out to WebSocket clients, per table
type Server struct {
	addr     string
	source   remote.Subscriber
	listener net.Listener
	server   *http.Server

	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// NewServer creates a feed server. Call Start to begin serving.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := config.Addr
	if addr == "" {
		addr = DefaultConfig().Addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		source:  config.Source,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("component", "realtime"),
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FeedPath, s.handleFeed)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start subscribes to every table of the source and begins serving
func (s *Server) Start() error {
	if s.source == nil {
		return fmt.Errorf("realtime server has no event source")
	}

	subs := make([]remote.Subscription, 0, len(remote.Tables))
	for _, table := range remote.Tables {
		sub, err := s.source.Subscribe(s.ctx, table)
		if err != nil {
			for _, opened := range subs {
				opened.Unsubscribe()
			}
			return fmt.Errorf("failed to subscribe to %s: %w", table, err)
		}
		subs = append(subs, sub)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for i, sub := range subs {
		s.wg.Add(1)
		go s.forward(remote.Tables[i], sub)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("realtime feed listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop disconnects every client and shuts the server down
func (s *Server) Stop() error {
	s.logger.Info("stopping realtime feed")
	s.cancel()

	s.clientsMu.Lock()
	for c := range s.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()

	var shutdownErr error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	return shutdownErr
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// forward relays one table's events until the source feed ends
func (s *Server) forward(table remote.Table, sub remote.Subscription) {
	defer s.wg.Done()
	defer sub.Unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if s.ctx.Err() == nil {
					s.logger.Warn("source feed ended", "table", table)
				}
				return
			}
			s.broadcast(ev)
		}
	}
}

func (s *Server) broadcast(ev remote.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal event", "error", err)
		return
	}

	s.clientsMu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if c.table == ev.Table {
			targets = append(targets, c)
		}
	}
	s.clientsMu.RUnlock()

	for _, c := range targets {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.logger.Warn("failed to send to client", "table", c.table, "error", err)
			s.removeClient(c)
		}
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	table := remote.Table(r.URL.Query().Get("table"))
	if !table.Valid() {
		http.Error(w, fmt.Sprintf("unknown table %q", table), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, table: table}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("client connected", "table", table, "clients", count)

	// Clients send nothing; reading detects disconnects
	defer s.removeClient(c)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("client disconnected", "table", c.table, "clients", count)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}
