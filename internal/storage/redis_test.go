package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisUnderTest(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageFromClient(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStorage_GetSet(t *testing.T) {
	s, _ := newRedisUnderTest(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	val, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "v" {
		t.Errorf("Get = %q, want %q", val, "v")
	}

	missing, err := s.Get(ctx, "absent")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("Get on missing key = %q, want nil", missing)
	}
}

func TestRedisStorage_Expiry(t *testing.T) {
	s, mr := newRedisUnderTest(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), time.Minute)

	mr.FastForward(time.Minute + time.Second)
	if val, _ := s.Get(ctx, "k"); val != nil {
		t.Errorf("Get after expiry = %q, want nil", val)
	}
}

func TestRedisStorage_Increment(t *testing.T) {
	s, mr := newRedisUnderTest(t)
	ctx := context.Background()

	n, err := s.Increment(ctx, "ctr", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("first increment = %d, want 1", n)
	}

	n, _ = s.Increment(ctx, "ctr", 2, time.Minute)
	if n != 3 {
		t.Fatalf("second increment = %d, want 3", n)
	}

	// Expiration is set on creation only and survives later increments.
	ttl := mr.TTL("ctr")
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("counter TTL = %v, want within (0, 1m]", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	n, _ = s.Increment(ctx, "ctr", 1, time.Minute)
	if n != 1 {
		t.Errorf("increment after expiry = %d, want fresh counter 1", n)
	}
}

func TestRedisStorage_Delete(t *testing.T) {
	s, _ := newRedisUnderTest(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if val, _ := s.Get(ctx, "k"); val != nil {
		t.Error("key survived Delete")
	}
}

func TestRedisStorage_CloseIdempotent(t *testing.T) {
	s, _ := newRedisUnderTest(t)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNormalizeRedisConfig(t *testing.T) {
	if _, err := normalizeRedisConfig(nil); err == nil {
		t.Error("nil config should be rejected")
	}
	if _, err := normalizeRedisConfig(&RedisConfig{Port: 6379}); err == nil {
		t.Error("missing host should be rejected")
	}
	if _, err := normalizeRedisConfig(&RedisConfig{Host: "localhost"}); err == nil {
		t.Error("missing port should be rejected")
	}

	conf, err := normalizeRedisConfig(&RedisConfig{Host: "localhost", Port: 6379})
	if err != nil {
		t.Fatal(err)
	}
	if conf.PoolSize != defaultRedisPoolSize || conf.MaxRetries != defaultRedisMaxRetries || conf.DialTimeout != defaultRedisDialTimeout {
		t.Errorf("defaults not applied: %+v", conf)
	}
}
