// Package realtime pushes role changes between server instances over Redis
// pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannelPrefix namespaces the per-user role channels
const DefaultChannelPrefix = "camwatch:roles:"

const subscriberBuffer = 8

// Config holds Redis connection settings
type Config struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// Connect opens and pings a Redis client
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RoleBroadcaster implements domain.RoleBroadcaster with one channel per user
type RoleBroadcaster struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRoleBroadcaster creates a broadcaster. An empty prefix uses DefaultChannelPrefix.
func NewRoleBroadcaster(client *redis.Client, prefix string) *RoleBroadcaster {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RoleBroadcaster{
		client: client,
		prefix: prefix,
		log:    logger.Component("realtime"),
	}
}

// Channel returns the channel name used for userID
func (b *RoleBroadcaster) Channel(userID uuid.UUID) string {
	return b.prefix + userID.String()
}

// Publish sends change to every subscriber of change.UserID
func (b *RoleBroadcaster) Publish(ctx context.Context, change domain.RoleChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.Channel(change.UserID), payload).Err()
}

// Subscribe listens for role changes of userID until ctx ends or the
// returned stop function is called. The channel is closed once listening stops.
func (b *RoleBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan domain.RoleChange, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.Channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to role channel: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.RoleChange, subscriberBuffer)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		defer stop()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change domain.RoleChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Discarding malformed role change")
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, stop, nil
}
