package hub

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"okeanchat/internal/domain"
	"okeanchat/internal/observability/metrics"
)

const registryShards = 64

type registryShard struct {
	mu    sync.RWMutex
	users map[domain.UserID]map[string]Channel
}

// Registry maps identities to their live channels. It is owned by one server
// process and starts empty; it is never the source of truth for anything
// persisted.
type Registry struct {
	shards [registryShards]registryShard
	count  atomic.Int64
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[domain.UserID]map[string]Channel)
	}
	return r
}

func (r *Registry) shard(id domain.UserID) *registryShard {
	return &r.shards[xxhash.Sum64String(id)%registryShards]
}

// Register adds ch under its identity and reports whether it is the
// identity's first live channel. Registering the same channel twice is a no-op.
func (r *Registry) Register(ch Channel) (first bool) {
	s := r.shard(ch.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[ch.UserID()]
	if !ok {
		set = make(map[string]Channel, 1)
		s.users[ch.UserID()] = set
	}
	if _, dup := set[ch.ID()]; dup {
		return false
	}
	set[ch.ID()] = ch
	r.count.Add(1)
	metrics.ConnectionsActive.Inc()
	return len(set) == 1
}

// Unregister removes ch and reports whether the identity has no channels
// left. Unknown channels report false.
func (r *Registry) Unregister(ch Channel) (last bool) {
	s := r.shard(ch.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[ch.UserID()]
	if !ok {
		return false
	}
	if _, present := set[ch.ID()]; !present {
		return false
	}
	delete(set, ch.ID())
	r.count.Add(-1)
	metrics.ConnectionsActive.Dec()
	if len(set) == 0 {
		delete(s.users, ch.UserID())
		return true
	}
	return false
}

// ChannelsFor returns a snapshot of the identity's channels; empty when offline.
func (r *Registry) ChannelsFor(id domain.UserID) []Channel {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.users[id]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) IsOnline(id domain.UserID) bool {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[id]) > 0
}

// Count is the number of registered channels across all identities.
func (r *Registry) Count() int { return int(r.count.Load()) }
