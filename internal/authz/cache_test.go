package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	roles map[uuid.UUID][]Role
	calls int
}

func (s *countingSource) RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.roles[userID], nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingSource) setRoles(userID uuid.UUID, roles []Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = roles
}

func newCacheForTest(t *testing.T) (*RoleCache, *countingSource, context.CancelFunc) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	source := &countingSource{roles: make(map[uuid.UUID][]Role)}
	cache, err := NewRoleCache(source, client, nil, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go cache.Subscribe(ctx)
	require.Eventually(t, cache.isReady, time.Second, 5*time.Millisecond, "subscription never became ready")
	return cache, source, cancel
}

func TestRoleCacheServesFromCacheUntilInvalidated(t *testing.T) {
	cache, source, cancel := newCacheForTest(t)
	defer cancel()

	userID := uuid.New()
	source.setRoles(userID, []Role{RoleDataArchitect})

	roles, err := cache.Get(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, []Role{RoleDataArchitect}, roles)

	// Second read hits the cache.
	_, err = cache.Get(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 1, source.callCount())

	// A role change invalidates; the next read recomputes from the source.
	source.setRoles(userID, []Role{RoleDataArchitect, RoleCloudArchitect})
	require.NoError(t, cache.Invalidate(context.Background(), userID))
	require.Eventually(t, func() bool {
		roles, err := cache.Get(context.Background(), userID)
		return err == nil && len(roles) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRoleCachePassThroughBeforeSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	source := &countingSource{roles: make(map[uuid.UUID][]Role)}
	cache, err := NewRoleCache(source, client, nil, 0)
	require.NoError(t, err)

	userID := uuid.New()
	source.setRoles(userID, []Role{RoleViewer})

	// Without a live subscription every read must go to the source: caching
	// before the listener exists could miss an invalidation.
	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background(), userID)
		require.NoError(t, err)
	}
	require.Equal(t, 3, source.callCount())
}

func TestRoleCacheWildcardFlush(t *testing.T) {
	cache, source, cancel := newCacheForTest(t)
	defer cancel()

	a, b := uuid.New(), uuid.New()
	source.setRoles(a, []Role{RoleViewer})
	source.setRoles(b, []Role{RoleBusinessArchitect})
	_, err := cache.Get(context.Background(), a)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, 2, source.callCount())

	require.NoError(t, cache.client.Publish(context.Background(), RoleChannel, "*").Err())
	require.Eventually(t, func() bool {
		_, _ = cache.Get(context.Background(), a)
		_, _ = cache.Get(context.Background(), b)
		return source.callCount() >= 4
	}, time.Second, 5*time.Millisecond)
}
