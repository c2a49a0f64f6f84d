// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package event carries admission-control outcomes to whatever renders them.
package event

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// Type identifies the kind of event.
type Type string

const (
	TypeAccessDenied    Type = "access.denied"
	TypeAccessOverride  Type = "access.override"
	TypeDimensionOpened Type = "dimension.opened"
	TypeDimensionClosed Type = "dimension.closed"
)

// Source identifies what caused a state transition.
type Source string

const (
	SourceCommand  Source = "command"
	SourceSchedule Source = "schedule"
	// SourceSync marks a change another process wrote to shared storage.
	SourceSync Source = "sync"
)

// Event is something the notifier may render.
type Event struct {
	ID        ulid.ULID
	Type      Type
	Dimension dimension.Dimension
	Actor     string // actor ID, or schedule name for schedule transitions
	Reason    string // decision reason for access events
	Source    Source // set for transition events
	Timestamp time.Time
}

// Notifier receives events. Implementations must not block.
type Notifier interface {
	Notify(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(Event) {})

// TransitionType returns the event type for a transition to open.
func TransitionType(open bool) Type {
	if open {
		return TypeDimensionOpened
	}
	return TypeDimensionClosed
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// New creates an event with a fresh ID and timestamp.
func New(typ Type, d dimension.Dimension, actor string) Event {
	return Event{
		ID:        NewULID(),
		Type:      typ,
		Dimension: d,
		Actor:     actor,
		Timestamp: time.Now(),
	}
}
