package security

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestRedisRevocations runs against a real server when TEST_REDIS_URL is set.
func TestRedisRevocations(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient failed: %v", err)
	}
	defer client.Close()

	store := NewRedisRevocations(client)
	jti := "test-" + time.Now().Format("150405.000000000")

	if err := store.Revoke(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err := store.IsRevoked(ctx, jti)
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v (err %v)", revoked, err)
	}
	ttl, err := client.TTL(ctx, revokedKeyPrefix+jti).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v (err %v)", ttl, err)
	}
}

func TestNewRedisClient_badURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "://nope"); err == nil {
		t.Error("expected parse error")
	}
}
