package cache

import (
	"context"
	"testing"
	"time"

	"voice-agent/pkg/config"
)

func TestMemoryStore_Set_Get(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	if err := s.Set(ctx, "k1", []float64{1, 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(v) != 2 || v[1] != 2 {
		t.Errorf("Get: got %v", v)
	}
	v[0] = 99
	again, _, _ := s.Get(ctx, "k1")
	if again[0] != 1 {
		t.Error("cached value must not alias returned slice")
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	_, ok, err := NewMemoryStore(0).Get(context.Background(), "missing")
	if err != nil || ok {
		t.Errorf("Get missing: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	_ = s.Set(ctx, "k", []float64{1})
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("fresh item should hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expired item should miss")
	}
	if s.Len() != 0 {
		t.Errorf("expired item should be evicted, len=%d", s.Len())
	}
}

func TestNewCache(t *testing.T) {
	s, err := NewCache(config.CacheConfig{Type: "memory", TTL: "1h"})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if s.(*MemoryStore).ttl != time.Hour {
		t.Errorf("ttl = %v", s.(*MemoryStore).ttl)
	}
	if s, err := NewCache(config.CacheConfig{Type: "none"}); err != nil || s != nil {
		t.Errorf("none: %v %v", s, err)
	}
	if _, err := NewCache(config.CacheConfig{TTL: "soon"}); err == nil {
		t.Error("invalid ttl should error")
	}
	if _, err := NewCache(config.CacheConfig{Type: "bogus"}); err == nil {
		t.Error("unknown type should error")
	}
}
