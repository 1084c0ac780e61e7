// Package gateway exposes the collaboration engine over WebSocket: it
// streams session lifecycle events to connected clients and accepts
// schema-validated collaborate requests. The engine runs fine with no
// clients connected.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/raihan/conclave/pkg/collab"
)

// Config holds gateway server configuration
type Config struct {
	Host    string
	Port    int
	Manager *collab.Manager
	Metrics http.Handler // optional, mounted at /metrics
	Logger  zerolog.Logger
}

// Server is the websocket gateway
type Server struct {
	cfg         Config
	manager     *collab.Manager
	clients     *ClientRegistry
	broadcaster *EventBroadcaster
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	logger      zerolog.Logger
}

// NewServer creates a gateway server and subscribes it to the manager's
// event stream.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	s := &Server{
		cfg:     cfg,
		manager: cfg.Manager,
		clients: NewClientRegistry(),
		logger:  cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.broadcaster = NewEventBroadcaster(s.clients, cfg.Logger)

	s.subscribe()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// subscribe bridges engine lifecycle events onto the broadcast stream
func (s *Server) subscribe() {
	emitter := s.manager.Emitter()
	for _, event := range []collab.EventType{
		collab.EventSessionStarted,
		collab.EventRoundCompleted,
		collab.EventSessionCompleted,
		collab.EventError,
	} {
		ev := event
		emitter.On(ev, func(payload interface{}) {
			s.broadcaster.Broadcast(string(ev), payload)
		})
	}
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
	}
	s.clients.Add(client)
	s.logger.Info().Str("clientId", client.ID).Int("clients", s.clients.Count()).Msg("Client connected")

	defer func() {
		s.clients.Remove(client.ID)
		_ = conn.Close()
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleInbound(r.Context(), client, data)
	}
}

// handleInbound processes one client frame
func (s *Server) handleInbound(ctx context.Context, client *Client, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(client, fmt.Sprintf("malformed message: %v", err))
		return
	}

	switch msg.Type {
	case "collaborate":
		s.handleCollaborate(ctx, client, msg.Payload)
	default:
		s.sendError(client, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// handleCollaborate validates and launches one session. The session runs
// on its own goroutine; progress reaches the client through the
// broadcast stream.
func (s *Server) handleCollaborate(ctx context.Context, client *Client, payload []byte) {
	if err := ValidateCollaboratePayload(payload); err != nil {
		s.sendError(client, err.Error())
		return
	}

	var req collab.CollaborationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(client, fmt.Sprintf("malformed collaborate payload: %v", err))
		return
	}

	initiator := "gateway:" + client.ID
	go func() {
		// Sessions outlive the originating request; only process
		// shutdown cancels them.
		if _, err := s.manager.StartSession(context.WithoutCancel(ctx), initiator, req); err != nil {
			s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Session rejected")
		}
	}()
}

func (s *Server) sendError(client *Client, message string) {
	frame, err := json.Marshal(EventMessage{
		Type:      "error",
		Event:     "request_rejected",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := client.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to send error frame")
	}
}
