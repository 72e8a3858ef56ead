package blinkchat

import (
	"sync"

	"github.com/google/uuid"
)

// Topics published on the invalidation bridge.
const (
	// TopicRoomUpdated signals that room metadata may have changed out of band
	// (a profile dialog edited a name, description, or photo). There is no
	// payload; subscribers refetch whatever they derive from room metadata.
	TopicRoomUpdated = "room_updated"
)

// InvalidationBridge is an in-process publish/subscribe channel that lets
// components with no structural relationship signal "something changed". It
// supports multiple subscribers per topic and makes no ordering guarantee
// across subscribers. There is no persisted state and no delivery beyond the
// current process.
type InvalidationBridge struct {
	mu     sync.RWMutex
	topics map[string]map[string]func()
}

// BridgeSubscription identifies one subscriber for later removal.
type BridgeSubscription struct {
	topic string
	id    string
}

func NewInvalidationBridge() *InvalidationBridge {
	return &InvalidationBridge{topics: make(map[string]map[string]func())}
}

// Subscribe registers handler for topic and returns a handle for Unsubscribe.
// Handlers run on the publisher's goroutine; long work should be handed off.
func (b *InvalidationBridge) Subscribe(topic string, handler func()) BridgeSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	if subs == nil {
		subs = make(map[string]func())
		b.topics[topic] = subs
	}
	id := uuid.NewString()
	subs[id] = handler
	return BridgeSubscription{topic: topic, id: id}
}

// Unsubscribe removes a subscriber. Unsubscribing twice is a no-op.
func (b *InvalidationBridge) Unsubscribe(sub BridgeSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.topics[sub.topic]; subs != nil {
		delete(subs, sub.id)
	}
}

// Publish invokes every handler subscribed to topic. Map iteration makes the
// cross-subscriber order deliberately unspecified.
func (b *InvalidationBridge) Publish(topic string) {
	b.mu.RLock()
	handlers := make([]func(), 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h()
	}
}
