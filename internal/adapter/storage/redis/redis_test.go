package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestHealthCheck(t *testing.T) {
	mr, client := newTestClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	require.NoError(t, hc.Ping(context.Background()))

	mr.Close()
	err := hc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
