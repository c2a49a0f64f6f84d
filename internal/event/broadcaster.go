// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package event

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 100

// Broadcaster distributes events to subscribers. It implements Notifier.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[Type][]chan Event
	all    []chan Event
	logger *slog.Logger
}

// NewBroadcaster creates a new broadcaster. A nil logger uses slog.Default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[Type][]chan Event),
		logger: logger,
	}
}

// Subscribe creates a channel receiving events of the given types, or of
// every type when none are given.
func (b *Broadcaster) Subscribe(types ...Type) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if len(types) == 0 {
		b.all = append(b.all, ch)
		return ch
	}
	for _, t := range types {
		b.subs[t] = append(b.subs[t], ch)
	}
	return ch
}

// Unsubscribe removes a channel from every subscription and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	for t, subs := range b.subs {
		if kept, ok := without(subs, ch); ok {
			b.subs[t] = kept
			found = true
		}
	}
	if kept, ok := without(b.all, ch); ok {
		b.all = kept
		found = true
	}
	if found {
		close(ch)
	}
}

func without(subs []chan Event, ch chan Event) ([]chan Event, bool) {
	for i, sub := range subs {
		if sub == ch {
			return append(subs[:i:i], subs[i+1:]...), true
		}
	}
	return subs, false
}

// Notify sends an event to all matching subscribers without blocking.
func (b *Broadcaster) Notify(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[e.Type] {
		b.send(ch, e)
	}
	for _, ch := range b.all {
		b.send(ch, e)
	}
}

func (b *Broadcaster) send(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
		b.logger.Warn("event dropped: subscriber buffer full",
			"event_id", e.ID.String(),
			"event_type", string(e.Type),
			"dimension", e.Dimension.String(),
		)
	}
}

var _ Notifier = (*Broadcaster)(nil)
