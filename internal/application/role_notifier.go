package application

import (
	"context"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// RoleNotifier propagates role changes to other sessions. Every method is
// best-effort: failures are logged and never returned.
type RoleNotifier struct {
	broadcaster domain.RoleBroadcaster
	queries     *RoleQueries
	clock       clockwork.Clock
	log         zerolog.Logger
}

// NewRoleNotifier creates a notifier. broadcaster may be nil when no realtime
// channel is configured.
func NewRoleNotifier(broadcaster domain.RoleBroadcaster, queries *RoleQueries, clock clockwork.Clock) *RoleNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoleNotifier{
		broadcaster: broadcaster,
		queries:     queries,
		clock:       clock,
		log:         logger.Component("role-notifier"),
	}
}

// NotifyRoleChange pushes the new role on the realtime channel
func (n *RoleNotifier) NotifyRoleChange(ctx context.Context, userID uuid.UUID, role domain.Role) {
	if n.broadcaster == nil {
		return
	}
	change := domain.RoleChange{UserID: userID, Role: role, At: n.clock.Now()}
	if err := n.broadcaster.Publish(ctx, change); err != nil {
		n.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Msg("Role change broadcast failed")
	}
}

// TriggerRealtimeNotification touches the role record so table listeners fire
func (n *RoleNotifier) TriggerRealtimeNotification(ctx context.Context, userID uuid.UUID) {
	if err := n.queries.TouchRole(ctx, userID); err != nil {
		n.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Msg("Role record touch failed")
	}
}
