package main

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/memocache/cache"
	"github.com/jonwraymond/memocache/observe"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("SERVE", "false")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.ttl != 90*time.Second || cfg.serve || cfg.addr != ":8080" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("CACHE_TTL", "soon")
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() should reject a bad CACHE_TTL")
	}
}

func TestRunScenarios(t *testing.T) {
	reg := cache.NewReconcilers()
	if err := cache.Register(reg, cache.TaggedMembers[Order]()...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc, err := cache.NewService(cache.NewMemoryStore(), cache.WithReconcilers(reg))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if err := runScenarios(context.Background(), svc, observe.NewNoopLogger()); err != nil {
		t.Fatalf("runScenarios() error = %v", err)
	}

	s := svc.Stats()
	// 4 warm misses, add(2,3) miss then hit, process miss then hit.
	if s.Misses != 6 || s.Hits != 2 {
		t.Errorf("Stats() = %+v, want 6 misses and 2 hits", s)
	}
	if s.Reconciled != 2 {
		t.Errorf("Reconciled = %d, want 2", s.Reconciled)
	}
}
