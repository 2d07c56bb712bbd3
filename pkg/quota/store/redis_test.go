//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"resumetailor-hq/tailor/pkg/quota"
)

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	runContract(t, func(t *testing.T) quota.Store {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		prefix := "tailor:test:" + t.Name() + ":"
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			client.Close()
		})
		return NewRedisStore(client, WithKeyPrefix(prefix))
	})
}
