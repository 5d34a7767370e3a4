package authz

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// RoleChannel is the Redis pub/sub channel announcing role-set changes.
// The payload is the affected user ID, or "*" to flush everything.
const RoleChannel = "authz.roles.changed"

const defaultCacheSize = 4096

// RoleSource loads the stored role assignments for a user.
type RoleSource interface {
	RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error)
}

// RoleCache keeps per-user role sets in process, invalidated through Redis
// pub/sub. Subscribe must be running before any Get is served from the
// cache; otherwise a role change published between a load and the
// subscription start would be lost and a stale aggregate could outlive the
// change event.
type RoleCache struct {
	source RoleSource
	client *redis.Client
	logger *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[uuid.UUID, []Role]
	ready   bool
}

// NewRoleCache constructs a RoleCache bounded to size entries. It serves
// straight from the source until Subscribe reports the subscription is
// established.
func NewRoleCache(source RoleSource, client *redis.Client, logger *slog.Logger, size int) (*RoleCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[uuid.UUID, []Role](size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleCache{
		source:  source,
		client:  client,
		logger:  logger,
		entries: entries,
	}, nil
}

// Subscribe starts listening for invalidation messages and only then marks
// the cache usable. Blocks until ctx is done. On any subscription error the
// cache drops back to pass-through mode and flushes, failing toward
// recomputation rather than staleness.
func (c *RoleCache) Subscribe(ctx context.Context) {
	sub := c.client.Subscribe(ctx, RoleChannel)
	defer func() {
		_ = sub.Close()
		c.setReady(false)
	}()

	// Wait for the subscription confirmation before caching anything.
	if _, err := sub.Receive(ctx); err != nil {
		c.logger.Error("role cache subscribe", slog.Any("error", err))
		return
	}
	c.setReady(true)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.logger.Warn("role cache channel closed")
				return
			}
			c.handleMessage(msg.Payload)
		}
	}
}

func (c *RoleCache) handleMessage(payload string) {
	if payload == "*" {
		c.mu.Lock()
		c.entries.Purge()
		c.mu.Unlock()
		return
	}
	id, err := uuid.Parse(payload)
	if err != nil {
		c.logger.Warn("role cache bad invalidation payload", slog.String("payload", payload))
		c.mu.Lock()
		c.entries.Purge()
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	c.entries.Remove(id)
	c.mu.Unlock()
}

// Get returns the user's role set, from cache when possible.
func (c *RoleCache) Get(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	if c.isReady() {
		c.mu.Lock()
		roles, ok := c.entries.Get(userID)
		c.mu.Unlock()
		if ok {
			return roles, nil
		}
	}
	roles, err := c.source.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.isReady() {
		c.mu.Lock()
		c.entries.Add(userID, roles)
		c.mu.Unlock()
	}
	return roles, nil
}

// Invalidate publishes a change notice for the user. Every process drops its
// cached entry, including this one.
func (c *RoleCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	c.entries.Remove(userID)
	c.mu.Unlock()
	return c.client.Publish(ctx, RoleChannel, userID.String()).Err()
}

func (c *RoleCache) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *RoleCache) setReady(v bool) {
	c.mu.Lock()
	if !v {
		c.entries.Purge()
	}
	c.ready = v
	c.mu.Unlock()
}
