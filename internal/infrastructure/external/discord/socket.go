package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY
// Realtime event stream over websocket. One connection, one reader
// goroutine, one heartbeat goroutine. Identify on first connect, Resume
// with the stored session and sequence after recoverable drops.
// ══════════════════════════════════════════════════════════════════════════════

// ErrGatewayClosed is returned when the gateway was shut down locally.
var ErrGatewayClosed = errors.New("gateway closed")

// ErrAuthenticationFailed is returned when Discord rejects the token or
// intents. Reconnecting will not help.
var ErrAuthenticationFailed = errors.New("gateway authentication failed")

// Event is a dispatched gateway event.
type Event struct {
	Type string
	Data json.RawMessage
}

// GatewayConfig contains configuration for the gateway connection.
type GatewayConfig struct {
	// Token is the Discord bot token
	Token string

	// Intents selects which event groups Discord sends
	Intents int

	// Presence is the initial presence sent with Identify
	Presence *PresenceUpdate

	// HandshakeTimeout bounds the websocket dial
	HandshakeTimeout time.Duration

	// ReconnectDelay is the initial delay before reconnecting
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the reconnect backoff
	MaxReconnectDelay time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// Gateway maintains the realtime connection to Discord.
type Gateway struct {
	config GatewayConfig
	client *Client
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	// Session state used for Resume
	seq       int64
	sessionID string
	resumeURL string

	// Heartbeat bookkeeping, guarded by mu
	acked bool

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewGateway creates a gateway bound to the given REST client.
func NewGateway(client *Client, config GatewayConfig) *Gateway {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Intents == 0 {
		config.Intents = DefaultIntents
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 1 * time.Second
	}
	if config.MaxReconnectDelay <= 0 {
		config.MaxReconnectDelay = 60 * time.Second
	}

	return &Gateway{
		config: config,
		client: client,
		logger: config.Logger.With("component", "gateway"),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

// Events returns the dispatch stream. The channel is closed when Run
// returns.
func (g *Gateway) Events() <-chan Event {
	return g.events
}

// Run connects and serves gateway sessions until the context is
// cancelled, Close is called, or a non-recoverable error occurs.
// Recoverable drops reconnect with exponential backoff.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.events)

	delay := g.config.ReconnectDelay

	for {
		err := g.runSession(ctx)

		switch {
		case err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrGatewayClosed):
			return nil
		case errors.Is(err, ErrAuthenticationFailed):
			return err
		}

		g.logger.Warn("gateway session ended, reconnecting",
			"error", err,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-g.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > g.config.MaxReconnectDelay {
			delay = g.config.MaxReconnectDelay
		}
	}
}

// Close stops the gateway. Safe to call more than once.
func (g *Gateway) Close() {
	g.once.Do(func() {
		close(g.done)
	})

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		g.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		g.conn.Close()
		g.conn = nil
	}
}

// UpdatePresence sends a presence update over the active connection.
func (g *Gateway) UpdatePresence(presence PresenceUpdate) error {
	return g.send(OpPresenceUpdate, presence)
}

// runSession serves one websocket connection from dial to disconnect.
func (g *Gateway) runSession(ctx context.Context) error {
	wsURL, err := g.gatewayURL(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: g.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.acked = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.conn != nil {
			g.conn.Close()
			g.conn = nil
		}
		g.mu.Unlock()
	}()

	// The first frame must be Hello
	var hello HelloData
	payload, err := g.read(conn)
	if err != nil {
		return err
	}
	if payload.Op != OpHello {
		return fmt.Errorf("expected hello, got op %d", payload.Op)
	}
	if err := json.Unmarshal(payload.D, &hello); err != nil {
		return fmt.Errorf("unmarshal hello: %w", err)
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	if err := g.authenticate(); err != nil {
		return err
	}

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go g.heartbeat(conn, interval, heartbeatDone)

	// Unblock the reader when the caller goes away
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-g.done:
			conn.Close()
		case <-stop:
		}
	}()

	for {
		payload, err := g.read(conn)
		if err != nil {
			select {
			case <-ctx.Done():
				return context.Canceled
			case <-g.done:
				return ErrGatewayClosed
			default:
			}
			return g.classifyReadError(err)
		}

		if err := g.handlePayload(ctx, payload); err != nil {
			return err
		}
	}
}

// authenticate sends Resume when session state exists, Identify otherwise.
func (g *Gateway) authenticate() error {
	g.mu.Lock()
	sessionID := g.sessionID
	seq := g.seq
	g.mu.Unlock()

	if sessionID != "" {
		g.logger.Info("resuming gateway session", "session_id", sessionID, "seq", seq)
		return g.send(OpResume, ResumeData{
			Token:     g.config.Token,
			SessionID: sessionID,
			Seq:       seq,
		})
	}

	g.logger.Info("identifying new gateway session")
	return g.send(OpIdentify, IdentifyData{
		Token:   g.config.Token,
		Intents: g.config.Intents,
		Properties: IdentifyProperties{
			OS:      "linux",
			Browser: "questline-bot",
			Device:  "questline-bot",
		},
		Presence: g.config.Presence,
	})
}

// handlePayload reacts to one gateway frame.
func (g *Gateway) handlePayload(ctx context.Context, payload *GatewayPayload) error {
	switch payload.Op {
	case OpDispatch:
		g.mu.Lock()
		if payload.S != nil {
			g.seq = *payload.S
		}
		g.mu.Unlock()

		if payload.T == "READY" {
			var ready ReadyData
			if err := json.Unmarshal(payload.D, &ready); err != nil {
				return fmt.Errorf("unmarshal ready: %w", err)
			}
			g.mu.Lock()
			g.sessionID = ready.SessionID
			g.resumeURL = ready.ResumeGatewayURL
			g.mu.Unlock()
			g.logger.Info("gateway session ready",
				"session_id", ready.SessionID,
				"guilds", len(ready.Guilds),
			)
		}

		select {
		case g.events <- Event{Type: payload.T, Data: payload.D}:
		case <-ctx.Done():
			return context.Canceled
		case <-g.done:
			return ErrGatewayClosed
		}
		return nil

	case OpHeartbeat:
		// Discord asked for an immediate beat
		g.mu.Lock()
		seq := g.seq
		g.mu.Unlock()
		return g.send(OpHeartbeat, seq)

	case OpHeartbeatACK:
		g.mu.Lock()
		g.acked = true
		g.mu.Unlock()
		return nil

	case OpReconnect:
		return errors.New("server requested reconnect")

	case OpInvalidSession:
		var resumable bool
		json.Unmarshal(payload.D, &resumable)
		if !resumable {
			g.mu.Lock()
			g.sessionID = ""
			g.seq = 0
			g.resumeURL = ""
			g.mu.Unlock()
		}
		return errors.New("session invalidated")

	default:
		return nil
	}
}

// heartbeat beats at the negotiated interval. The first beat waits a
// random fraction of the interval so reconnecting shards do not align.
// A missing ACK means the connection is dead on the far side.
func (g *Gateway) heartbeat(conn *websocket.Conn, interval time.Duration, done chan struct{}) {
	first := time.Duration(rand.Float64() * float64(interval))

	select {
	case <-done:
		return
	case <-g.done:
		return
	case <-time.After(first):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		g.mu.Lock()
		acked := g.acked
		g.acked = false
		seq := g.seq
		g.mu.Unlock()

		if !acked {
			g.logger.Warn("heartbeat not acknowledged, dropping connection")
			conn.Close()
			return
		}

		if err := g.send(OpHeartbeat, seq); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-g.done:
			return
		case <-ticker.C:
		}
	}
}

// gatewayURL picks the resume URL when one is stored, otherwise asks the
// REST API where to connect.
func (g *Gateway) gatewayURL(ctx context.Context) (string, error) {
	g.mu.Lock()
	resumeURL := g.resumeURL
	g.mu.Unlock()

	base := resumeURL
	if base == "" {
		gw, err := g.client.GetGatewayBot(ctx)
		if err != nil {
			return "", fmt.Errorf("discover gateway: %w", err)
		}
		base = gw.URL
	}

	return base + "?v=10&encoding=json", nil
}

// read decodes one frame.
func (g *Gateway) read(conn *websocket.Conn) (*GatewayPayload, error) {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var payload GatewayPayload
	if err := json.Unmarshal(message, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &payload, nil
}

// send writes one frame. Gateway connections allow a single concurrent
// writer, so all writes funnel through here.
func (g *Gateway) send(op int, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal op %d: %w", op, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return ErrGatewayClosed
	}

	return g.conn.WriteJSON(GatewayPayload{Op: op, D: raw})
}

// classifyReadError maps websocket close codes onto recoverable or
// fatal errors. Authentication and intent failures must not retry.
func (g *Gateway) classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return fmt.Errorf("gateway read: %w", err)
	}

	switch closeErr.Code {
	case 4004, 4010, 4011, 4012, 4013, 4014:
		return fmt.Errorf("%w: close code %d: %s", ErrAuthenticationFailed, closeErr.Code, closeErr.Text)
	case 4007, 4009:
		// Bad sequence or session timeout. Start fresh next time.
		g.mu.Lock()
		g.sessionID = ""
		g.seq = 0
		g.resumeURL = ""
		g.mu.Unlock()
	}

	return fmt.Errorf("gateway closed: code %d: %s", closeErr.Code, closeErr.Text)
}
