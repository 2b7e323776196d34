package session

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store maps session IDs to sessions with idle expiry. Expired sessions drop
// their dataset with them, so abandoned uploads don't pin memory.
type Store struct {
	cache *ttlcache.Cache[string, *Session]
}

// NewStore creates a session store. Sessions expire after ttl of inactivity;
// touching a session extends it.
func NewStore(ttl time.Duration) *Store {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
	)
	go cache.Start()
	return &Store{cache: cache}
}

// Get returns the session for id, creating it on first sight. Creation is
// atomic: concurrent first requests for the same id all land on one Session.
func (s *Store) Get(id string) *Session {
	item, _ := s.cache.GetOrSet(id, &Session{ID: id})
	return item.Value()
}

// Stop halts the expiry loop.
func (s *Store) Stop() {
	s.cache.Stop()
}
