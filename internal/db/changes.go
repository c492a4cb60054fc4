package db

import (
	"context"
	"sync"

	"github.com/tgienger/taskboard/internal/remote"
)

// subscriberBuffer bounds undelivered events per subscriber. Dropped
// events are harmless: any queued event already triggers a full reload.
const subscriberBuffer = 16

// changeHub fans change events out to per-table subscribers
type changeHub struct {
	mu   sync.Mutex
	subs map[remote.Table]map[*remote.ChanSubscription]struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{
		subs: make(map[remote.Table]map[*remote.ChanSubscription]struct{}),
	}
}

func (h *changeHub) subscribe(ctx context.Context, table remote.Table) *remote.ChanSubscription {
	var (
		sub    *remote.ChanSubscription
		stopMu sync.Mutex
		stop   func() bool
	)

	sub = remote.NewChanSubscription(subscriberBuffer, func() {
		stopMu.Lock()
		s := stop
		stopMu.Unlock()
		if s != nil {
			s()
		}
		h.remove(table, sub)
	})

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[*remote.ChanSubscription]struct{})
	}
	h.subs[table][sub] = struct{}{}
	h.mu.Unlock()

	stopMu.Lock()
	stop = context.AfterFunc(ctx, func() { sub.Unsubscribe() })
	stopMu.Unlock()
	return sub
}

func (h *changeHub) remove(table remote.Table, sub *remote.ChanSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[table]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, table)
		}
	}
}

func (h *changeHub) publish(ev remote.ChangeEvent) {
	// Snapshot under lock; deliver after release
	h.mu.Lock()
	subs := make([]*remote.ChanSubscription, 0, len(h.subs[ev.Table]))
	for sub := range h.subs[ev.Table] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Send(ev)
	}
}

func (h *changeHub) count(table remote.Table) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[table])
}
