package blinkchat

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ============================================================================
// Configuration
// ============================================================================

// ChannelConfig configures the push-channel client.
type ChannelConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int // 0 means unlimited
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	OutboxLimit          int
	Logger               zerolog.Logger
}

func (c *ChannelConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.OutboxLimit == 0 {
		c.OutboxLimit = 64
	}
}

// ChannelState represents the push-channel connection state.
type ChannelState string

const (
	StateDisconnected ChannelState = "disconnected"
	StateConnecting   ChannelState = "connecting"
	StateConnected    ChannelState = "connected"
)

// ============================================================================
// Event Dispatcher
// ============================================================================

// Subscriptions are delivered synchronously from the read loop so that message
// events reach handlers in arrival order. Handlers must not block.
type channelDispatcher struct {
	mu        sync.RWMutex
	onMessage []func(Message)
	onState   []func(ChannelState)
}

func (d *channelDispatcher) dispatchMessage(msg Message) {
	d.mu.RLock()
	handlers := append([]func(Message){}, d.onMessage...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (d *channelDispatcher) dispatchState(s ChannelState) {
	d.mu.RLock()
	handlers := append([]func(ChannelState){}, d.onState...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h(s)
	}
}

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *ChannelConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// ============================================================================
// ChannelClient
// ============================================================================

// ChannelClient owns the push-channel connection lifecycle and the per-room
// subscription set. It is constructed explicitly and injected into consumers;
// there is no shared ambient connection.
//
// Commands issued while disconnected are queued in a bounded outbox and
// flushed on the next Connected transition. The subscription set does not
// survive a drop: it is cleared on disconnect and must be re-established by
// the observer replaying joins (the engine does this for every directory id).
type ChannelClient struct {
	url    string
	config *ChannelConfig
	log    zerolog.Logger

	mu               sync.Mutex
	conn             *websocket.Conn
	state            ChannelState
	intentionalClose bool
	joined           map[string]bool
	outbox           *outbox
	cancelFn         context.CancelFunc

	dispatcher channelDispatcher
	recon      *reconnector
}

// NewChannelClient creates a push-channel client for the given websocket URL.
// Call Connect to establish the connection.
func NewChannelClient(url string, config *ChannelConfig) *ChannelClient {
	if config == nil {
		config = &ChannelConfig{AutoReconnect: true}
	}
	cfg := *config
	cfg.defaults()
	return &ChannelClient{
		url:    url,
		config: &cfg,
		log:    cfg.Logger,
		state:  StateDisconnected,
		joined: make(map[string]bool),
		outbox: newOutbox(cfg.OutboxLimit),
		recon:  newReconnector(&cfg),
	}
}

// OnMessage registers a handler for inbound chat messages.
// Handlers run on the read loop goroutine, in arrival order.
func (cc *ChannelClient) OnMessage(h func(Message)) {
	cc.dispatcher.mu.Lock()
	cc.dispatcher.onMessage = append(cc.dispatcher.onMessage, h)
	cc.dispatcher.mu.Unlock()
}

// OnStateChange registers a handler for connection-state transitions.
func (cc *ChannelClient) OnStateChange(h func(ChannelState)) {
	cc.dispatcher.mu.Lock()
	cc.dispatcher.onState = append(cc.dispatcher.onState, h)
	cc.dispatcher.mu.Unlock()
}

// State returns the current connection state.
func (cc *ChannelClient) State() ChannelState {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.state
}

// Joined reports whether a join for roomID is currently in effect.
func (cc *ChannelClient) Joined(roomID string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.joined[roomID]
}

// Connect establishes the websocket connection. Calling Connect while already
// connected or connecting is a no-op.
func (cc *ChannelClient) Connect(ctx context.Context) error {
	cc.mu.Lock()
	if cc.state == StateConnected || cc.state == StateConnecting {
		cc.mu.Unlock()
		return nil
	}
	cc.state = StateConnecting
	cc.intentionalClose = false
	cc.mu.Unlock()
	cc.dispatcher.dispatchState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, cc.url, nil)
	if err != nil {
		cc.mu.Lock()
		cc.state = StateDisconnected
		cc.mu.Unlock()
		cc.dispatcher.dispatchState(StateDisconnected)
		return fmt.Errorf("channel dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	cc.mu.Lock()
	cc.conn = conn
	cc.state = StateConnected
	cc.cancelFn = cancel
	cc.mu.Unlock()
	cc.recon.markConnected()

	// Replay buffered commands before announcing the transition, so observers
	// see a channel whose queue has already drained.
	cc.flushOutbox(connCtx)
	cc.dispatcher.dispatchState(StateConnected)

	go cc.readLoop(connCtx, conn)
	return nil
}

// Disconnect gracefully closes the connection. No reconnect is attempted.
func (cc *ChannelClient) Disconnect() error {
	cc.mu.Lock()
	cc.intentionalClose = true
	if cc.cancelFn != nil {
		cc.cancelFn()
		cc.cancelFn = nil
	}
	conn := cc.conn
	cc.conn = nil
	cc.state = StateDisconnected
	cc.joined = make(map[string]bool)
	cc.mu.Unlock()

	cc.dispatcher.dispatchState(StateDisconnected)

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

// JoinRoom subscribes to a room's live events. Joining an already-joined room
// is a no-op. While disconnected the join is buffered and flushed on the next
// Connected transition.
func (cc *ChannelClient) JoinRoom(ctx context.Context, roomID string) error {
	cc.mu.Lock()
	if cc.joined[roomID] {
		cc.mu.Unlock()
		return nil
	}
	cc.joined[roomID] = true
	cc.mu.Unlock()

	return cc.send(ctx, &ChannelCommand{
		Type:    CommandJoinRoom,
		Payload: roomRef{RoomID: roomID},
	})
}

// LeaveRoom unsubscribes from a room's live events. Consumers must call this
// when they stop observing a room; a forgotten leave keeps a subscription
// alive that silently discards events.
func (cc *ChannelClient) LeaveRoom(ctx context.Context, roomID string) error {
	cc.mu.Lock()
	if !cc.joined[roomID] {
		cc.mu.Unlock()
		return nil
	}
	delete(cc.joined, roomID)
	cc.mu.Unlock()

	return cc.send(ctx, &ChannelCommand{
		Type:    CommandLeaveRoom,
		Payload: roomRef{RoomID: roomID},
	})
}

// SendMessage sends a chat message. The outbound command carries no author
// identity; the server derives it from the channel's session, and the sender
// learns of its own message only via the broadcast echo.
func (cc *ChannelClient) SendMessage(ctx context.Context, roomID, text string) error {
	return cc.send(ctx, &ChannelCommand{
		Type:      CommandSendMessage,
		Payload:   outboundMessage{RoomID: roomID, Text: text},
		RequestID: ulid.Make().String(),
	})
}

// send writes a command if connected, otherwise queues it.
func (cc *ChannelClient) send(ctx context.Context, cmd *ChannelCommand) error {
	cc.mu.Lock()
	conn := cc.conn
	connected := cc.state == StateConnected
	cc.mu.Unlock()

	if !connected || conn == nil {
		if err := cc.outbox.push(cmd); err != nil {
			return err
		}
		cc.log.Debug().Str("type", cmd.Type).Msg("channel command queued while disconnected")
		return nil
	}
	return cc.write(ctx, conn, cmd)
}

func (cc *ChannelClient) write(ctx context.Context, conn *websocket.Conn, cmd *ChannelCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (cc *ChannelClient) flushOutbox(ctx context.Context) {
	cc.mu.Lock()
	conn := cc.conn
	cc.mu.Unlock()
	if conn == nil {
		return
	}
	for _, cmd := range cc.outbox.drain() {
		if err := cc.write(ctx, conn, cmd); err != nil {
			cc.log.Warn().Err(err).Str("type", cmd.Type).Msg("failed to flush queued command")
			return
		}
	}
}

// readLoop owns conn for the lifetime of one connection. It must not go back
// to cc.conn: a concurrent Disconnect nils the field, and a later Connect may
// have installed a successor already.
func (cc *ChannelClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			cc.mu.Lock()
			if cc.intentionalClose || cc.conn != conn {
				// Closed on purpose, or a newer connection took over.
				cc.mu.Unlock()
				return
			}
			cc.state = StateDisconnected
			cc.conn = nil
			cc.joined = make(map[string]bool)
			cc.mu.Unlock()

			cc.log.Warn().Err(err).Msg("channel dropped")
			cc.dispatcher.dispatchState(StateDisconnected)

			if cc.config.AutoReconnect && cc.recon.shouldReconnect() {
				cc.scheduleReconnect()
			}
			return
		}

		var env ChannelEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}

		switch env.Type {
		case EventMessage:
			var msg Message
			if json.Unmarshal(env.Payload, &msg) == nil {
				cc.dispatcher.dispatchMessage(msg)
			}
		}
	}
}

func (cc *ChannelClient) scheduleReconnect() {
	delay := cc.recon.nextDelay()
	cc.log.Debug().Dur("delay", delay).Int("attempt", cc.recon.attempt).Msg("channel reconnecting")

	time.Sleep(delay)

	cc.mu.Lock()
	if cc.intentionalClose {
		cc.mu.Unlock()
		return
	}
	cc.mu.Unlock()

	if err := cc.Connect(context.Background()); err != nil {
		if cc.config.AutoReconnect && cc.recon.shouldReconnect() {
			cc.scheduleReconnect()
		}
	}
}
