package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_LocalFallback(t *testing.T) {
	c, err := NewCache(CacheConfig{LocalGCInterval: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	ok, err := c.SetNX(ctx, CaughtKey("r1", "e1"), "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewPubSub_LocalRoundTrip(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, EventChannel("r1"))
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, EventChannel("r1"), `{"kind":"lost"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, "pursuit:r1", msg.Channel)
		assert.Equal(t, `{"kind":"lost"}`, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNewPubSub_CancelClosesAdapter(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 2})
	require.NoError(t, err)

	ch, cancel, err := ps.Subscribe(context.Background(), "x")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("adapter channel not closed")
	}
}

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "pursuit:warehouse", EventChannel("warehouse"))
	assert.Equal(t, "pursuit:events:warehouse", EventHistoryKey("warehouse"))
	assert.Equal(t, "pursuit:caught:warehouse:g1", CaughtKey("warehouse", "g1"))
}
