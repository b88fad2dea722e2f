package payment

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore remembers which external webhook event ids have already
// been processed.  When Redis is available the seen-set is shared
// across instances via SET NX with a TTL; without Redis it degrades to
// an in-process map with the same expiry semantics, which is only safe
// for single-instance deployments.  Either way the ledger's source_id
// check remains as the second line of defence against double grants.
type DedupStore struct {
	rdb *redis.Client
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // event id -> expiry, fallback path only
}

// NewDedupStore returns a store retaining event ids for ttl.  rdb may
// be nil.
func NewDedupStore(rdb *redis.Client, ttl time.Duration) *DedupStore {
	return &DedupStore{rdb: rdb, ttl: ttl, seen: make(map[string]time.Time)}
}

// FirstDelivery reports whether this is the first time the event id has
// been seen and records it atomically.  A Redis failure is logged and
// the in-process fallback takes over for that call rather than
// blocking webhook processing.
func (s *DedupStore) FirstDelivery(ctx context.Context, eventID string) bool {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, "webhook:event:"+eventID, "1", s.ttl).Result()
		if err == nil {
			return ok
		}
		log.Printf("webhook-dedup: redis error, falling back to local map: %v", err)
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.seen {
		if exp.Before(now) {
			delete(s.seen, id)
		}
	}
	if exp, dup := s.seen[eventID]; dup && exp.After(now) {
		return false
	}
	s.seen[eventID] = now.Add(s.ttl)
	return true
}

// Forget drops an event id so a redelivery can be processed again.
// Called when handling failed after the id was already claimed;
// otherwise the sender's retry would be swallowed as a duplicate.
func (s *DedupStore) Forget(ctx context.Context, eventID string) {
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, "webhook:event:"+eventID).Err(); err == nil {
			return
		}
	}
	s.mu.Lock()
	delete(s.seen, eventID)
	s.mu.Unlock()
}
