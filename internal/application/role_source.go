package application

import (
	"context"
	"sync"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// DefaultMinFetchInterval throttles authoritative role reads per user
const DefaultMinFetchInterval = 5 * time.Second

const fetchTimeout = 10 * time.Second

// RoleSource resolves a user's current role through the cache, falling back
// to the store. Concurrent fetches for the same user share one query, and a
// user is not refetched more often than the minimum interval.
type RoleSource struct {
	cache       *RoleCache
	queries     *RoleQueries
	clock       clockwork.Clock
	minInterval time.Duration

	group     singleflight.Group
	mu        sync.Mutex
	lastFetch map[uuid.UUID]time.Time
}

// NewRoleSource creates a role source
func NewRoleSource(cache *RoleCache, queries *RoleQueries, clock clockwork.Clock, minInterval time.Duration) *RoleSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if minInterval < 0 {
		minInterval = 0
	}
	return &RoleSource{
		cache:       cache,
		queries:     queries,
		clock:       clock,
		minInterval: minInterval,
		lastFetch:   make(map[uuid.UUID]time.Time),
	}
}

// ResolveRole returns the cached role or fetches it
func (s *RoleSource) ResolveRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	if role, ok := s.cache.Get(userID); ok {
		return role, nil
	}
	role, _, err := s.Fetch(ctx, userID)
	return role, err
}

// Fetch reads the authoritative role and caches it. Within the minimum
// interval of the previous read the cached value is returned instead. The
// returned time is when the read started, so a write that lands while the
// read is in flight is never ordered before it.
func (s *RoleSource) Fetch(ctx context.Context, userID uuid.UUID) (domain.Role, time.Time, error) {
	if s.recentlyFetched(userID) {
		if role, at, ok := s.cache.getWithTime(userID); ok {
			return role, at, nil
		}
	}

	type result struct {
		role domain.Role
		at   time.Time
	}
	v, err, _ := s.group.Do(userID.String(), func() (interface{}, error) {
		// joined callers must not inherit the first caller's cancellation
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		started := s.clock.Now()
		role, err := s.queries.FetchRole(fetchCtx, userID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.lastFetch[userID] = s.clock.Now()
		s.mu.Unlock()
		if !s.cache.setObserved(userID, role, started) {
			// a newer value landed while the read was in flight
			if newer, at, ok := s.cache.getWithTime(userID); ok {
				return result{role: newer, at: at}, nil
			}
		}
		return result{role: role, at: started}, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	r := v.(result)
	return r.role, r.at, nil
}

// Forget clears throttle state for userID so the next Fetch hits the store
func (s *RoleSource) Forget(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.lastFetch, userID)
	s.mu.Unlock()
	s.cache.Invalidate(userID)
}

func (s *RoleSource) recentlyFetched(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFetch[userID]
	return ok && s.clock.Since(last) < s.minInterval
}
