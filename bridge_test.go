package blinkchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgePublishReachesAllSubscribers(t *testing.T) {
	b := NewInvalidationBridge()

	var first, second int
	b.Subscribe(TopicRoomUpdated, func() { first++ })
	b.Subscribe(TopicRoomUpdated, func() { second++ })

	b.Publish(TopicRoomUpdated)
	b.Publish(TopicRoomUpdated)

	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
}

func TestBridgeTopicsAreIsolated(t *testing.T) {
	b := NewInvalidationBridge()

	var hits int
	b.Subscribe("other_topic", func() { hits++ })

	b.Publish(TopicRoomUpdated)
	assert.Zero(t, hits)

	// Publishing with no subscribers at all is fine.
	b.Publish("nobody_listens")
}

func TestBridgeUnsubscribe(t *testing.T) {
	b := NewInvalidationBridge()

	var kept, dropped int
	b.Subscribe(TopicRoomUpdated, func() { kept++ })
	sub := b.Subscribe(TopicRoomUpdated, func() { dropped++ })

	b.Publish(TopicRoomUpdated)
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // twice is a no-op
	b.Publish(TopicRoomUpdated)

	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, dropped)
}
