package blinkchat

import (
	"strings"
	"sync"
	"time"
)

// RoomDirectory is the ordered collection of joined rooms. Ordering is
// recency of applied messages, maintained by move-to-front: the room that
// last received a message sits at index 0 regardless of what timestamps
// other rooms carry. A full Load replaces the set and restores the server's
// order until live traffic reorders it again.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms []Room
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{}
}

// Load replaces the full room set with a directory snapshot. The incoming
// order is authoritative at that instant.
func (d *RoomDirectory) Load(rooms []Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = append([]Room(nil), rooms...)
}

// ApplyIncomingMessage updates a room's preview fields and moves it to the
// front. A message for a room the directory does not hold is dropped and
// ErrUnknownRoom returned; the room may simply not have been loaded yet, so
// callers should log rather than fail.
func (d *RoomDirectory) ApplyIncomingMessage(roomID, text string, createdAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownRoom
	}

	room := d.rooms[idx]
	room.LastMessage = text
	room.LastMessageAt = createdAt

	// Move-to-front, not a sort: last applied wins even against a room whose
	// timestamp is numerically later.
	d.rooms = append(d.rooms[:idx], d.rooms[idx+1:]...)
	d.rooms = append([]Room{room}, d.rooms...)
	return nil
}

// Get returns the room with the given id.
func (d *RoomDirectory) Get(roomID string) (Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			return d.rooms[i], true
		}
	}
	return Room{}, false
}

// Remove deletes a room, e.g. after an explicit leave.
func (d *RoomDirectory) Remove(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			d.rooms = append(d.rooms[:i], d.rooms[i+1:]...)
			return
		}
	}
}

// List returns the rooms in display order.
func (d *RoomDirectory) List() []Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Room(nil), d.rooms...)
}

// IDs returns the joined room ids in display order. This is the subscription
// set the channel must hold while connected.
func (d *RoomDirectory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, len(d.rooms))
	for i := range d.rooms {
		ids[i] = d.rooms[i].ID
	}
	return ids
}

// Filter returns the rooms whose name contains query, case-insensitively.
// It is a pure projection over List and holds no state of its own.
func (d *RoomDirectory) Filter(query string) []Room {
	if query == "" {
		return d.List()
	}
	q := strings.ToLower(query)

	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Room
	for i := range d.rooms {
		if strings.Contains(strings.ToLower(d.rooms[i].Name), q) {
			out = append(out, d.rooms[i])
		}
	}
	return out
}

// Len returns the number of joined rooms.
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
