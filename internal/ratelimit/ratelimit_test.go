package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
)

func TestStore_SameKeySameLimiter(t *testing.T) {
	s := NewStore(10, 1)
	if s.Get("k") != s.Get("k") {
		t.Fatal("expected same limiter for the same key")
	}
	if s.Get("k") == s.Get("other") {
		t.Fatal("expected distinct limiters for distinct keys")
	}
}

func TestStore_AllowHonoursBurst(t *testing.T) {
	now := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	s := NewStore(1, 2, WithClock(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		if ok, _ := s.Allow("1.2.3.4"); !ok {
			t.Fatalf("expected attempt %d within burst to pass", i)
		}
	}
	ok, wait := s.Allow("1.2.3.4")
	if ok {
		t.Fatal("expected third immediate attempt to be throttled")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("expected a wait of at most one second, got %v", wait)
	}
	if ok, _ := s.Allow("5.6.7.8"); !ok {
		t.Error("expected another client to be unaffected")
	}

	now = now.Add(time.Second)
	if ok, _ := s.Allow("1.2.3.4"); !ok {
		t.Error("expected a token after one second")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	now := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	s := NewStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithClock(func() time.Time { return now }))

	before := s.Get("k")
	now = now.Add(2 * time.Minute)
	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected idle entry to be removed, got %d", s.Len())
	}
	if s.Get("k") == before {
		t.Error("expected limiter to be recreated after cleanup")
	}
}

func TestMiddleware(t *testing.T) {
	_, api := humatest.New(t)
	store := NewStore(0.01, 1)

	huma.Register(api, huma.Operation{
		OperationID:   "ping",
		Method:        http.MethodPost,
		Path:          "/ping",
		DefaultStatus: http.StatusNoContent,
		Middlewares:   huma.Middlewares{Middleware(api, store, true)},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		return nil, nil
	})

	if resp := api.Post("/ping", "X-Forwarded-For: 10.0.0.1, 10.0.0.2"); resp.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", resp.Code)
	}
	resp := api.Post("/ping", "X-Forwarded-For: 10.0.0.1")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if resp := api.Post("/ping", "X-Forwarded-For: 10.0.0.9"); resp.Code != http.StatusNoContent {
		t.Errorf("expected a different client to pass, got %d", resp.Code)
	}
}
