package blinkchat

import "sync"

// outbox is the bounded queue of channel commands issued while the connection
// is down. Commands are held in issue order and drained on the next Connected
// transition, after which the server sees them as if the gap never happened.
// A full outbox rejects new commands with ErrOutboxFull rather than dropping
// older ones; the caller decides whether to retry or surface the error.
type outbox struct {
	mu    sync.Mutex
	limit int
	queue []*ChannelCommand
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit}
}

func (o *outbox) push(cmd *ChannelCommand) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) >= o.limit {
		return ErrOutboxFull
	}
	o.queue = append(o.queue, cmd)
	return nil
}

// drain removes and returns all queued commands in issue order.
func (o *outbox) drain() []*ChannelCommand {
	o.mu.Lock()
	defer o.mu.Unlock()
	queued := o.queue
	o.queue = nil
	return queued
}

func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}
