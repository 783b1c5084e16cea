package application

import (
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/camwatch/backend/internal/pkg/ttlcache"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultRoleCacheTTL is how long a resolved role is trusted before a refetch
const DefaultRoleCacheTTL = 30 * time.Second

// RoleCache maps a user to their last resolved role
type RoleCache struct {
	entries *ttlcache.Cache[uuid.UUID, domain.Role]
	metrics *metrics.Metrics
}

// NewRoleCache creates an empty role cache
func NewRoleCache(ttl time.Duration, clock clockwork.Clock, m *metrics.Metrics) (*RoleCache, error) {
	entries, err := ttlcache.New[uuid.UUID, domain.Role](ttl, 0, clock)
	if err != nil {
		return nil, err
	}
	return &RoleCache{entries: entries, metrics: m}, nil
}

// Get returns the cached role only while it is younger than the TTL
func (c *RoleCache) Get(userID uuid.UUID) (domain.Role, bool) {
	role, ok := c.entries.Get(userID)
	c.metrics.RecordCacheLookup("role", ok)
	return role, ok
}

// getWithTime also reports when the cached role was observed
func (c *RoleCache) getWithTime(userID uuid.UUID) (domain.Role, time.Time, bool) {
	return c.entries.GetWithTime(userID)
}

// Set overwrites the cached role for userID
func (c *RoleCache) Set(userID uuid.UUID, role domain.Role) {
	c.entries.Set(userID, role)
}

// setObserved caches a role observed at the given time unless a later value
// is already cached
func (c *RoleCache) setObserved(userID uuid.UUID, role domain.Role, at time.Time) bool {
	return c.entries.SetIfNewer(userID, role, at)
}

// Invalidate drops the cached role for userID
func (c *RoleCache) Invalidate(userID uuid.UUID) {
	c.entries.Delete(userID)
}

// InvalidateAll drops every cached role
func (c *RoleCache) InvalidateAll() {
	c.entries.Purge()
}
