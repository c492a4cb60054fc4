package remote

import "sync"

// EventKind says what happened to a row
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	// EventAny is sent when the feed knows the table changed but not how
	EventAny EventKind = "*"
)

// ChangeEvent notifies that some row of Table changed. It carries no
// row payload; consumers reload the collection.
type ChangeEvent struct {
	Event  EventKind `json:"event"`
	Schema string    `json:"schema"`
	Table  Table     `json:"table"`
}

// NewEvent builds an event for table in the public schema
func NewEvent(kind EventKind, table Table) ChangeEvent {
	return ChangeEvent{Event: kind, Schema: Schema, Table: table}
}

// Subscription is a standing change feed for one table
type Subscription interface {
	// Events delivers change events. Closed when the feed ends.
	Events() <-chan ChangeEvent

	// Errors delivers non-fatal feed errors. May be nil.
	Errors() <-chan error

	// Unsubscribe ends the feed. Once it returns, no further events
	// are delivered. Safe to call more than once.
	Unsubscribe() error
}

// ChanSubscription is a Subscription backed by channels the producer
// writes to. Producers call Send/Fail; Unsubscribe runs onClose once.
type ChanSubscription struct {
	events  chan ChangeEvent
	errors  chan error
	mu      sync.Mutex
	closed  bool
	onClose func()
}

// NewChanSubscription creates a subscription with the given buffer.
// onClose, if non-nil, is called once when the subscription closes.
func NewChanSubscription(buffer int, onClose func()) *ChanSubscription {
	return &ChanSubscription{
		events:  make(chan ChangeEvent, buffer),
		errors:  make(chan error, 1),
		onClose: onClose,
	}
}

// Events implements Subscription
func (s *ChanSubscription) Events() <-chan ChangeEvent { return s.events }

// Errors implements Subscription
func (s *ChanSubscription) Errors() <-chan error { return s.errors }

// Send delivers an event without blocking. A full buffer drops the
// event: the consumer already has a pending reload queued, and a full
// reload observes this change too.
func (s *ChanSubscription) Send(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Fail reports a feed error without blocking
func (s *ChanSubscription) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.errors <- err:
	default:
	}
}

// Unsubscribe implements Subscription
func (s *ChanSubscription) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	close(s.errors)
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Closed reports whether Unsubscribe has run
func (s *ChanSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
