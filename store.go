package blinkchat

import "sync"

// MessageStore holds the ordered, deduplicated message log of each room being
// viewed. It is an append-only log: arrival order is display order, and the
// store never re-sorts on out-of-order arrival.
//
// Deduplication is keyed on (AuthorID, CreatedAt). That guards two races: the
// REST snapshot overlapping a live event, and a sender's own outbound send
// overlapping its channel echo.
type MessageStore struct {
	mu   sync.RWMutex
	logs map[string]*roomLog
}

type roomLog struct {
	messages []Message
	seen     map[string]bool
}

func newRoomLog() *roomLog {
	return &roomLog{seen: make(map[string]bool)}
}

func (l *roomLog) append(msg Message) bool {
	key := msg.dedupKey()
	if l.seen[key] {
		return false
	}
	l.seen[key] = true
	l.messages = append(l.messages, msg)
	return true
}

func NewMessageStore() *MessageStore {
	return &MessageStore{logs: make(map[string]*roomLog)}
}

// LoadSnapshot installs a room's history snapshot. Messages must arrive
// oldest-first; the REST client normalizes ordering before this boundary.
//
// Live messages that landed before the snapshot finished are not lost: any
// entry already held for the room whose key is absent from the snapshot is
// re-appended after it.
func (s *MessageStore) LoadSnapshot(roomID string, messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := s.logs[roomID]
	log := newRoomLog()
	for _, msg := range messages {
		log.append(msg)
	}
	if prior != nil {
		for _, msg := range prior.messages {
			log.append(msg)
		}
	}
	s.logs[roomID] = log
}

// ApplyIncomingMessage appends a live message to its room's log. Duplicates
// are silently absorbed; the return value reports whether the message was new.
func (s *MessageStore) ApplyIncomingMessage(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[msg.RoomID]
	if log == nil {
		log = newRoomLog()
		s.logs[msg.RoomID] = log
	}
	return log.append(msg)
}

// List returns a room's log in display order.
func (s *MessageStore) List(roomID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[roomID]
	if log == nil {
		return nil
	}
	return append([]Message(nil), log.messages...)
}

// Len returns the number of messages held for a room.
func (s *MessageStore) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if log := s.logs[roomID]; log != nil {
		return len(log.messages)
	}
	return 0
}

// Clear drops a room's log, used when the viewed room changes.
func (s *MessageStore) Clear(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, roomID)
}
