package blinkchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(offset int) time.Time {
	return time.Unix(1700000000+int64(offset), 0).UTC()
}

func testRooms() []Room {
	return []Room{
		{ID: "r1", Name: "General", LastMessage: "hi", LastMessageAt: ts(0)},
		{ID: "r2", Name: "Random", LastMessage: "yo", LastMessageAt: ts(5)},
		{ID: "r3", Name: "Announcements"},
	}
}

func TestRoomDirectoryLoadReplaces(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())
	require.Equal(t, 3, d.Len())

	d.Load([]Room{{ID: "r9", Name: "Fresh"}})
	require.Equal(t, 1, d.Len())
	_, ok := d.Get("r1")
	assert.False(t, ok, "old rooms should be gone after a full load")
}

func TestRoomDirectoryMoveToFront(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())

	// r1 gets a message timestamped between r1's and r2's previews. It still
	// moves to the front: last applied wins, not the larger timestamp.
	err := d.ApplyIncomingMessage("r1", "new", ts(1))
	require.NoError(t, err)

	rooms := d.List()
	require.Equal(t, "r1", rooms[0].ID)
	assert.Equal(t, "new", rooms[0].LastMessage)
	assert.Equal(t, ts(1), rooms[0].LastMessageAt)
	assert.Equal(t, "r2", rooms[1].ID)
	assert.Equal(t, ts(5), rooms[1].LastMessageAt, "r2 keeps its later timestamp behind r1")
}

func TestRoomDirectoryMoveToFrontIsRepeatable(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())

	require.NoError(t, d.ApplyIncomingMessage("r3", "a", ts(10)))
	require.NoError(t, d.ApplyIncomingMessage("r2", "b", ts(11)))
	require.NoError(t, d.ApplyIncomingMessage("r3", "c", ts(12)))

	ids := d.IDs()
	assert.Equal(t, []string{"r3", "r2", "r1"}, ids)
	room, _ := d.Get("r3")
	assert.Equal(t, "c", room.LastMessage)
}

func TestRoomDirectoryUnknownRoomDropped(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())

	err := d.ApplyIncomingMessage("nope", "text", ts(1))
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.Equal(t, 3, d.Len())
}

func TestRoomDirectoryRemove(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())

	d.Remove("r2")
	assert.Equal(t, []string{"r1", "r3"}, d.IDs())

	// Removing a missing room is a no-op.
	d.Remove("r2")
	assert.Equal(t, 2, d.Len())
}

func TestRoomDirectoryFilter(t *testing.T) {
	d := NewRoomDirectory()
	d.Load(testRooms())

	hits := d.Filter("AnN")
	require.Len(t, hits, 1)
	assert.Equal(t, "r3", hits[0].ID)

	assert.Len(t, d.Filter(""), 3)
	assert.Empty(t, d.Filter("zzz"))

	// Filtering does not disturb the directory's own order.
	assert.Equal(t, []string{"r1", "r2", "r3"}, d.IDs())
}
