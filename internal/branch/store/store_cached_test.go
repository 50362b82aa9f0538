package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/circuit"
)

// An unreachable redis must never make the directory unavailable.
func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemory()
	b, err := models.NewBranch(id.NewBranchID(), "HW", "Hawalli", time.Now())
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	cached := NewCached(backend, client)

	require.NoError(t, cached.CreateIfAvailable(ctx, b))

	active, err := cached.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	found, err := cached.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hawalli", found.Name)
}

func TestCachedOpensBreakerAfterRedisFailures(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemory()
	b, err := models.NewBranch(id.NewBranchID(), "JH", "Jahra", time.Now())
	require.NoError(t, err)
	require.NoError(t, backend.CreateIfAvailable(ctx, b))

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	cached := NewCached(backend, client, WithCacheBreaker(breaker))

	for range 2 {
		_, err := cached.ListActive(ctx)
		require.NoError(t, err)
	}
	assert.True(t, breaker.IsOpen())

	active, err := cached.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1, "reads keep working from the backend while open")
}
