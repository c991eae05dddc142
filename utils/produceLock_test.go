package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/karibu/produce_backend/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})
	return mr
}

func TestProduceLock_HeldLockIsBusy(t *testing.T) {
	t.Setenv("STOCK_LOCK_TIMEOUT_MS", "100")
	useMiniredis(t)
	ctx := context.Background()

	release, err := ProduceLock(ctx, 7, "Sale", "CreateSale")
	require.NoError(t, err)

	_, err = ProduceLock(ctx, 7, "Sale", "CreateSale")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, KindBusy, KindOf(err))

	// other produce is independent
	releaseOther, err := ProduceLock(ctx, 8, "Sale", "CreateSale")
	require.NoError(t, err)
	releaseOther()

	release()
	again, err := ProduceLock(ctx, 7, "Sale", "CreateSale")
	require.NoError(t, err)
	again()
}

func TestProduceLock_SkippedWithoutRedis(t *testing.T) {
	config.SetRedisClient(nil)
	release, err := ProduceLock(context.Background(), 7, "Sale", "CreateSale")
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}
