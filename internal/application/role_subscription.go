package application

import (
	"context"
	"sync"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultRolePollInterval is how often a subscription re-reads the role
const DefaultRolePollInterval = 30 * time.Second

// RoleSubscription tracks one session's view of a user's role. A poller and
// the realtime channel both feed apply, which keeps the newest value by
// timestamp and drops anything older.
type RoleSubscription struct {
	userID  uuid.UUID
	source  *RoleSource
	cache   *RoleCache
	updates chan domain.Role
	log     zerolog.Logger

	mu      sync.Mutex
	current domain.Role
	at      time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	onClose func()
	closed  sync.Once
}

// Current returns the latest accepted role
func (s *RoleSubscription) Current() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Updates delivers each role change. Slow readers miss intermediate values,
// never the latest one, which is always available from Current.
func (s *RoleSubscription) Updates() <-chan domain.Role {
	return s.updates
}

// Refresh fetches the role now, subject to the source's throttle
func (s *RoleSubscription) Refresh(ctx context.Context) (domain.Role, error) {
	role, at, err := s.source.Fetch(ctx, s.userID)
	if err != nil {
		return s.Current(), err
	}
	s.apply(role, at)
	return s.Current(), nil
}

// Close stops both producers and waits for them to exit
func (s *RoleSubscription) Close() {
	s.closed.Do(func() {
		s.cancel()
		<-s.done
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// apply is the single reducer for polled and pushed values
func (s *RoleSubscription) apply(role domain.Role, at time.Time) bool {
	s.mu.Lock()
	if at.Before(s.at) {
		s.mu.Unlock()
		return false
	}
	changed := role != s.current
	s.current = role
	s.at = at
	s.mu.Unlock()

	s.cache.setObserved(s.userID, role, at)
	if changed {
		select {
		case s.updates <- role:
		default:
			// drop the stale pending value so the newest one is queued
			select {
			case <-s.updates:
			default:
			}
			select {
			case s.updates <- role:
			default:
			}
		}
	}
	return changed
}

func (s *RoleSubscription) run(ctx context.Context, clock clockwork.Clock, interval time.Duration, pushed <-chan domain.RoleChange, unsubscribe func()) {
	defer close(s.done)
	if unsubscribe != nil {
		defer unsubscribe()
	}

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			role, at, err := s.source.Fetch(ctx, s.userID)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn().Err(err).Str("user_id", s.userID.String()).Msg("Role poll failed")
				}
				continue
			}
			s.apply(role, at)
		case change, ok := <-pushed:
			if !ok {
				pushed = nil
				continue
			}
			if change.UserID != s.userID || !change.Role.Valid() {
				continue
			}
			s.apply(change.Role, change.At)
		}
	}
}

// SubscriptionHub owns the open role subscriptions and refreshes a user's
// sessions after their own role changes.
type SubscriptionHub struct {
	source      *RoleSource
	cache       *RoleCache
	broadcaster domain.RoleBroadcaster
	clock       clockwork.Clock
	interval    time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]map[*RoleSubscription]struct{}
}

// NewSubscriptionHub creates a hub. broadcaster may be nil, leaving polling as the only producer.
func NewSubscriptionHub(source *RoleSource, cache *RoleCache, broadcaster domain.RoleBroadcaster, clock clockwork.Clock, interval time.Duration, m *metrics.Metrics) *SubscriptionHub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultRolePollInterval
	}
	return &SubscriptionHub{
		source:      source,
		cache:       cache,
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
		metrics:     m,
		log:         logger.Component("role-subscription"),
		subs:        make(map[uuid.UUID]map[*RoleSubscription]struct{}),
	}
}

// Subscribe opens a subscription seeded with the current role. ctx only
// bounds the initial fetch; call Close to stop the subscription.
func (h *SubscriptionHub) Subscribe(ctx context.Context, userID uuid.UUID) (*RoleSubscription, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	role, at, err := h.source.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var pushed <-chan domain.RoleChange
	var unsubscribe func()
	if h.broadcaster != nil {
		pushed, unsubscribe, err = h.broadcaster.Subscribe(runCtx, userID)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Realtime role channel unavailable, polling only")
			pushed, unsubscribe = nil, nil
		}
	}

	sub := &RoleSubscription{
		userID:  userID,
		source:  h.source,
		cache:   h.cache,
		updates: make(chan domain.Role, 1),
		log:     h.log,
		current: role,
		at:      at,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sub.onClose = func() { h.remove(sub) }

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*RoleSubscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriptionOpened()

	go sub.run(runCtx, h.clock, h.interval, pushed, unsubscribe)
	return sub, nil
}

// RefreshSession re-reads the role for every open subscription of userID
func (h *SubscriptionHub) RefreshSession(ctx context.Context, userID uuid.UUID) error {
	var firstErr error
	for _, sub := range h.subscriptions(userID) {
		if _, err := sub.Refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of open subscriptions for userID
func (h *SubscriptionHub) Count(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// CloseAll closes every open subscription
func (h *SubscriptionHub) CloseAll() {
	h.mu.Lock()
	var all []*RoleSubscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (h *SubscriptionHub) subscriptions(userID uuid.UUID) []*RoleSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]*RoleSubscription, 0, len(h.subs[userID]))
	for sub := range h.subs[userID] {
		subs = append(subs, sub)
	}
	return subs
}

func (h *SubscriptionHub) remove(sub *RoleSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.userID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	h.metrics.SubscriptionClosed()
}
