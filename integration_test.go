//go:build integration

package blinkchat

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Run against a live backend:
//
//	BLINKCHAT_TEST_TOKEN=... BLINKCHAT_TEST_BASE_URL=http://localhost:4000 \
//	go test -tags integration ./...
func integrationClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("BLINKCHAT_TEST_TOKEN")
	if token == "" {
		t.Skip("BLINKCHAT_TEST_TOKEN not set")
	}
	opts := []ClientOption{}
	if base := os.Getenv("BLINKCHAT_TEST_BASE_URL"); base != "" {
		opts = append(opts, WithBaseURL(base))
	}
	return NewClient(token, opts...)
}

func TestIntegrationSnapshotAPI(t *testing.T) {
	client := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	identity, err := client.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, identity, "test token must be authenticated")

	rooms, err := client.JoinedRooms(ctx)
	require.NoError(t, err)
	if len(rooms) == 0 {
		t.Skip("test account has no rooms")
	}

	msgs, err := client.RoomMessages(ctx, rooms[0].ID, 10)
	require.NoError(t, err)
	for i := 1; i < len(msgs); i++ {
		require.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt),
			"history must be oldest-first after normalization")
	}
}

func TestIntegrationEngineRoundTrip(t *testing.T) {
	client := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	channel := NewChannelClient(client.ChannelURL(os.Getenv("BLINKCHAT_TEST_TOKEN")), nil)
	engine := NewEngine(client, channel, nil)
	require.NoError(t, engine.Start(ctx))
	defer engine.Stop()

	rooms := engine.Directory().List()
	if len(rooms) == 0 {
		t.Skip("test account has no rooms")
	}
	roomID := rooms[0].ID
	require.NoError(t, engine.OpenRoom(ctx, roomID))

	text := "integration ping " + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, engine.SendMessage(ctx, roomID, text))

	deadline := time.After(15 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("echo never arrived")
		case <-time.After(200 * time.Millisecond):
		}
		var found bool
		for _, m := range engine.Store().List(roomID) {
			if m.Text == text {
				require.True(t, engine.IsMine(m))
				found = true
			}
		}
		if found {
			return
		}
	}
}
