package blinkchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a backend-reported error. Status is the HTTP status
// code; Code is the backend's own error code when the body carries one, so
// callers branching on the transport outcome must use Status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Sentinel errors returned by the channel and engine layers.
var (
	// ErrNotConnected is returned when an outbound command cannot be issued and
	// the caller asked for immediate delivery.
	ErrNotConnected = errors.New("blinkchat: channel not connected")

	// ErrOutboxFull is returned when the disconnected-command queue is at capacity.
	ErrOutboxFull = errors.New("blinkchat: outbox full")

	// ErrUnknownRoom is returned for operations on a room the directory does not hold.
	ErrUnknownRoom = errors.New("blinkchat: unknown room")
)

// ============================================================================
// Domain Types
// ============================================================================

// Room is one entry of the joined-room directory.
type Room struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Photo         string    `json:"photo,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageTime,omitempty"`
	MemberCount   int       `json:"memberCount,omitempty"`
}

// Member is a room participant as returned by the room-details endpoint.
type Member struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Photo    string `json:"photo,omitempty"`
}

// RoomDetails is the full room record, including the member list.
type RoomDetails struct {
	Room
	Members []Member `json:"members,omitempty"`
}

// Message is a single chat message. The push path carries no server-issued
// message id, so (AuthorID, CreatedAt) is the identity used for deduplication.
type Message struct {
	RoomID      string    `json:"roomId"`
	AuthorID    string    `json:"userId"`
	AuthorName  string    `json:"userName,omitempty"`
	AuthorPhoto string    `json:"userPhoto,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// dedupKey is the composite identity of a message within one room's log.
// Nanosecond resolution keeps same-author collisions out of practical reach;
// a server-issued message id should replace this if one ever ships.
func (m Message) dedupKey() string {
	return fmt.Sprintf("%s|%d", m.AuthorID, m.CreatedAt.UnixNano())
}

// Identity is the resolved current user. A nil *Identity means "unresolved or
// unauthenticated" and every ownership check must treat it as not-mine.
type Identity struct {
	ID       string `json:"id"`
	UserName string `json:"userName,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

// ============================================================================
// Channel Wire Types
// ============================================================================

// ChannelEnvelope is the wire format for all push-channel frames, both
// directions.
type ChannelEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChannelCommand is a client-to-server frame. RequestID is client-generated
// and is echoed back by the server on acknowledgements; the author identity is
// never carried outbound — the server derives it from the authenticated
// session.
type ChannelCommand struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Inbound event types.
const (
	EventMessage = "receive_message"
)

// Outbound command types.
const (
	CommandJoinRoom    = "join_room"
	CommandLeaveRoom   = "leave_room"
	CommandSendMessage = "send_message"
)

// roomRef is the payload of join_room / leave_room commands.
type roomRef struct {
	RoomID string `json:"roomId"`
}

// outboundMessage is the payload of a send_message command.
type outboundMessage struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}
