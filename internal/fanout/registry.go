package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how many undelivered payloads a connection may
// accumulate before it is considered too slow and dropped.
const subscriberBuffer = 8

// Subscriber is one live viewer connection registered under a raid id.
// Payloads arrive on Updates; the channel is closed when the registry
// drops the subscriber (slow consumer) or it unsubscribes.
type Subscriber struct {
	id     string
	raidID string
	ch     chan json.RawMessage
}

// Updates delivers redacted sheet payloads, one per committed change.
func (s *Subscriber) Updates() <-chan json.RawMessage {
	return s.ch
}

// RaidID returns the raid this subscriber is registered under.
func (s *Subscriber) RaidID() string {
	return s.raidID
}

// Registry is the concurrency-safe multimap from raid id to live
// connections. It is constructed once, owned by the server's lifecycle,
// and injected into both the push handler and the change notifier; all
// locking is internal.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	logger *slog.Logger
}

// NewRegistry creates an empty fan-out registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new connection under a raid id. Each connection
// holds exactly one subscription.
func (r *Registry) Subscribe(raidID string) *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		raidID: raidID,
		ch:     make(chan json.RawMessage, subscriberBuffer),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[raidID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		r.subs[raidID] = set
	}
	set[sub] = struct{}{}

	r.logger.Debug("subscriber added", "raid_id", raidID, "subscriber_id", sub.id)
	return sub
}

// Unsubscribe removes a connection; called on disconnect. Safe to call
// after the registry has already dropped the subscriber.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(sub)
}

// Publish sends the payload to every connection registered under the
// raid id. Sends never block: a subscriber whose buffer is full is
// dropped silently so one slow client cannot stall fan-out to others.
func (r *Registry) Publish(raidID string, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sub := range r.subs[raidID] {
		select {
		case sub.ch <- payload:
		default:
			r.logger.Warn("dropping slow subscriber", "raid_id", raidID, "subscriber_id", sub.id)
			r.remove(sub)
		}
	}
}

// Count returns the number of live connections under a raid id.
func (r *Registry) Count(raidID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[raidID])
}

// remove must be called with the lock held. Closing the channel tells
// the connection handler to end.
func (r *Registry) remove(sub *Subscriber) {
	set, ok := r.subs[sub.raidID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.subs, sub.raidID)
	}
	close(sub.ch)
}
