package blinkchat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// snapshotFetcher is the slice of the REST client the engine depends on.
// *Client satisfies it; tests substitute a fake backend.
type snapshotFetcher interface {
	identityResolver
	JoinedRooms(ctx context.Context) ([]Room, error)
	RoomMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
	LeaveRoom(ctx context.Context, roomID string) error
}

// pushChannel is the slice of the channel client the engine depends on.
type pushChannel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	SendMessage(ctx context.Context, roomID, text string) error
	OnMessage(h func(Message))
	OnStateChange(h func(ChannelState))
}

// EngineConfig configures the reconciliation engine.
type EngineConfig struct {
	HistoryLimit int // messages fetched per room snapshot
	Logger       zerolog.Logger
}

func (c *EngineConfig) defaults() {
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 100
	}
}

// Engine reconciles the three input sources — the one-shot REST snapshots,
// the live push channel, and out-of-band invalidation signals — into one
// consistent local view held by its RoomDirectory and MessageStore.
//
// Every inbound event is applied atomically with respect to the others: a
// single mutex serializes all mutations of the two stores, so no handler is
// ever observed half-applied.
type Engine struct {
	fetcher snapshotFetcher
	channel pushChannel
	session *Session
	bridge  *InvalidationBridge
	config  *EngineConfig
	log     zerolog.Logger

	directory *RoomDirectory
	store     *MessageStore

	mu       sync.Mutex
	openRoom string
	sub      BridgeSubscription
	attached bool
	started  bool
}

// NewEngine wires a REST client and a push channel into a reconciliation
// engine. The channel is owned by the engine from here on: the engine
// connects it, observes its state, and replays subscriptions across drops.
func NewEngine(fetcher snapshotFetcher, channel pushChannel, config *EngineConfig) *Engine {
	if config == nil {
		config = &EngineConfig{}
	}
	cfg := *config
	cfg.defaults()

	e := &Engine{
		fetcher:   fetcher,
		channel:   channel,
		bridge:    NewInvalidationBridge(),
		config:    &cfg,
		log:       cfg.Logger,
		directory: NewRoomDirectory(),
		store:     NewMessageStore(),
	}
	e.session = NewSession(fetcher, cfg.Logger)
	return e
}

// Directory returns the engine's room directory for reactive reads.
func (e *Engine) Directory() *RoomDirectory { return e.directory }

// Store returns the engine's message store for reactive reads.
func (e *Engine) Store() *MessageStore { return e.store }

// Session returns the engine's identity session.
func (e *Engine) Session() *Session { return e.session }

// Bridge returns the invalidation bridge external editors publish on.
func (e *Engine) Bridge() *InvalidationBridge { return e.bridge }

// Start resolves identity, loads the directory snapshot, attaches the channel
// handlers, and connects. A directory fetch failure is returned without
// touching local state; Start can be retried.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.session.Resolve(ctx)

	rooms, err := e.fetcher.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("directory snapshot: %w", err)
	}

	e.mu.Lock()
	e.directory.Load(rooms)
	attach := !e.attached
	e.attached = true
	e.mu.Unlock()

	// Handlers attach once; a retried Start must not register duplicates.
	if attach {
		e.channel.OnMessage(e.handleMessage)
		e.channel.OnStateChange(e.handleStateChange)
		e.sub = e.bridge.Subscribe(TopicRoomUpdated, e.handleInvalidation)
	}

	if err := e.channel.Connect(ctx); err != nil {
		return fmt.Errorf("channel connect: %w", err)
	}

	// Marked only after the channel is up, so a failed connect keeps Start
	// retryable instead of short-circuiting to a silently offline engine.
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

// Stop disconnects the channel and detaches from the bridge.
func (e *Engine) Stop() error {
	e.bridge.Unsubscribe(e.sub)
	return e.channel.Disconnect()
}

// OpenRoom makes roomID the currently-viewed room and loads its history
// snapshot. A previously open room's log is cleared. Live messages that
// arrive while the snapshot fetch is in flight are merged, not lost.
//
// A failed snapshot fetch leaves existing state intact and is returned as a
// recoverable condition.
func (e *Engine) OpenRoom(ctx context.Context, roomID string) error {
	if _, ok := e.directory.Get(roomID); !ok {
		return ErrUnknownRoom
	}

	e.mu.Lock()
	if prior := e.openRoom; prior != "" && prior != roomID {
		e.store.Clear(prior)
	}
	e.openRoom = roomID
	e.mu.Unlock()

	if err := e.channel.JoinRoom(ctx, roomID); err != nil {
		e.log.Warn().Err(err).Str("room", roomID).Msg("join on open failed")
	}

	msgs, err := e.fetcher.RoomMessages(ctx, roomID, e.config.HistoryLimit)
	if err != nil {
		return fmt.Errorf("history snapshot for %s: %w", roomID, err)
	}

	e.mu.Lock()
	e.store.LoadSnapshot(roomID, msgs)
	e.mu.Unlock()
	return nil
}

// CloseRoom stops viewing the current room and clears its log. The channel
// subscription stays up — the room is still in the directory and keeps
// feeding previews.
func (e *Engine) CloseRoom() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openRoom != "" {
		e.store.Clear(e.openRoom)
		e.openRoom = ""
	}
}

// OpenRoomID returns the currently-viewed room id, or "".
func (e *Engine) OpenRoomID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openRoom
}

// SendMessage sends text to a room over the push channel. There is no local
// optimistic insert: the sender's copy arrives via the broadcast echo and is
// deduplicated like any other message.
func (e *Engine) SendMessage(ctx context.Context, roomID, text string) error {
	if _, ok := e.directory.Get(roomID); !ok {
		return ErrUnknownRoom
	}
	return e.channel.SendMessage(ctx, roomID, text)
}

// ExitRoom leaves a room for good: backend membership, channel subscription,
// directory entry, and any held log.
func (e *Engine) ExitRoom(ctx context.Context, roomID string) error {
	if err := e.fetcher.LeaveRoom(ctx, roomID); err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	if err := e.channel.LeaveRoom(ctx, roomID); err != nil {
		e.log.Warn().Err(err).Str("room", roomID).Msg("channel leave failed")
	}

	e.mu.Lock()
	e.directory.Remove(roomID)
	e.store.Clear(roomID)
	if e.openRoom == roomID {
		e.openRoom = ""
	}
	e.mu.Unlock()
	return nil
}

// RefreshDirectory refetches the directory snapshot and replaces the local
// set. On failure the existing directory is left untouched.
func (e *Engine) RefreshDirectory(ctx context.Context) error {
	rooms, err := e.fetcher.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("directory snapshot: %w", err)
	}
	e.mu.Lock()
	e.directory.Load(rooms)
	e.mu.Unlock()
	return nil
}

// IsMine reports whether msg was authored by the current session's user.
func (e *Engine) IsMine(msg Message) bool {
	return e.session.IsMine(msg)
}

// handleMessage applies one live message: the directory preview always, the
// open room's log only when the message belongs to it.
func (e *Engine) handleMessage(msg Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.directory.ApplyIncomingMessage(msg.RoomID, msg.Text, msg.CreatedAt); err != nil {
		if errors.Is(err, ErrUnknownRoom) {
			// Dropping here can hide a just-created room until the next
			// directory refresh. Known gap; keep it visible in the logs.
			e.log.Warn().Str("room", msg.RoomID).Msg("message for unknown room dropped")
		}
		return
	}

	if msg.RoomID == e.openRoom {
		e.store.ApplyIncomingMessage(msg)
	}
}

// handleStateChange re-establishes the subscription invariant after every
// Connected transition: the joined set must equal the directory's id set, and
// it is never assumed to have survived the drop.
func (e *Engine) handleStateChange(state ChannelState) {
	if state != StateConnected {
		return
	}
	ctx := context.Background()
	for _, id := range e.directory.IDs() {
		if err := e.channel.JoinRoom(ctx, id); err != nil {
			e.log.Warn().Err(err).Str("room", id).Msg("resubscribe failed")
		}
	}
}

// handleInvalidation reacts to an out-of-band "room metadata changed" signal
// by refetching the directory. The refetched order is authoritative.
func (e *Engine) handleInvalidation() {
	if err := e.RefreshDirectory(context.Background()); err != nil {
		e.log.Warn().Err(err).Msg("directory refresh after invalidation failed")
	}
}
