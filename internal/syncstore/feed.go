package syncstore

import (
	"context"
	"time"

	"github.com/tgienger/taskboard/internal/remote"
)

type reloadFunc func(context.Context) error

func (s *Store) openFeed(ctx context.Context, table remote.Table, reload reloadFunc) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return &SubscriptionError{Table: table, Err: ErrClosed}
	}
	if s.feeds[table] {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return &SubscriptionError{Table: table, Err: err}
	}

	// The feed outlives ctx; only Close ends it
	sub, err := s.client.Subscribe(s.ctx, table)
	if err != nil {
		subErr := &SubscriptionError{Table: table, Err: err}
		s.logger.Warn("failed to open change feed", "table", table, "error", err)
		return subErr
	}

	s.feeds[table] = true
	s.wg.Add(1)
	go s.feedLoop(table, sub, reload)

	s.logger.Info("change feed open", "table", table)
	return nil
}

// feedLoop turns every change event into a full reload of the table.
// When the feed drops it reconnects with exponential backoff and then
// reloads once, since events may have been missed while disconnected.
func (s *Store) feedLoop(table remote.Table, sub remote.Subscription, reload reloadFunc) {
	defer s.wg.Done()

	for {
		err := s.consume(table, sub, reload)
		sub.Unsubscribe()
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("change feed dropped", "error", &SubscriptionError{Table: table, Err: err})

		sub = s.reconnect(table)
		if sub == nil {
			return
		}
		_ = reload(s.ctx)
	}
}

// consume handles events until the feed ends or the store closes
func (s *Store) consume(table remote.Table, sub remote.Subscription, reload reloadFunc) error {
	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-s.ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return errFeedClosed
			}
			if s.ctx.Err() != nil {
				return nil
			}
			// Events already queued are covered by this reload
			n := 1 + drain(events)
			s.logger.Debug("change event", "table", table, "event", ev.Event, "coalesced", n)
			_ = reload(s.ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("change feed error", "error", &SubscriptionError{Table: table, Err: err})
		}
	}
}

// drain discards queued events without blocking and reports how many
func drain(events <-chan remote.ChangeEvent) int {
	n := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// reconnect retries Subscribe with backoff until it succeeds or the
// store closes, in which case it returns nil.
func (s *Store) reconnect(table remote.Table) remote.Subscription {
	backoff := s.backoff.Initial
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		sub, err := s.client.Subscribe(s.ctx, table)
		if err == nil {
			s.logger.Info("change feed reconnected", "table", table)
			return sub
		}
		if s.ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("change feed reconnect failed", "table", table, "error", err, "backoff", backoff)
		backoff = min(backoff*2, s.backoff.Max)
	}
}
