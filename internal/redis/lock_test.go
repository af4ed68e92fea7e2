package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-booking/pkg/logging"
)

func TestSubmitGuardExclusive(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewSubmitGuard(client, 15*time.Second, logging.Discard())
	ctx := context.Background()

	ok, release, err := guard.Acquire(ctx, "guest:3001234567:slot:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("lock:submit:guest:3001234567:slot:7"))

	ok2, release2, err := guard.Acquire(ctx, "guest:3001234567:slot:7")
	require.NoError(t, err)
	assert.False(t, ok2)
	assert.Nil(t, release2)

	other, releaseOther, err := guard.Acquire(ctx, "guest:3001234567:slot:8")
	require.NoError(t, err)
	assert.True(t, other)
	releaseOther()

	release()
	assert.False(t, mr.Exists("lock:submit:guest:3001234567:slot:7"))

	ok3, release3, err := guard.Acquire(ctx, "guest:3001234567:slot:7")
	require.NoError(t, err)
	assert.True(t, ok3)
	release3()
}

func TestSubmitGuardExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewSubmitGuard(client, 5*time.Second, logging.Discard())
	ctx := context.Background()

	ok, _, err := guard.Acquire(ctx, "member:laura@example.com:slot:7")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, _, err = guard.Acquire(ctx, "member:laura@example.com:slot:7")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmitGuardReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewSubmitGuard(client, 5*time.Second, logging.Discard())
	ctx := context.Background()

	_, release, err := guard.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)
	ok, _, err := guard.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	release()
	assert.True(t, mr.Exists("lock:submit:k"), "an expired holder must not delete the new holder's lock")
}

func TestSubmitGuardRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewSubmitGuard(client, 5*time.Second, logging.Discard())
	mr.Close()

	ok, release, err := guard.Acquire(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
}
