package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l := New(NewMemoryStore(), Config{Requests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "ip:1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "ip:1.2.3.4") {
		t.Fatal("fourth request must be rejected")
	}
	if !l.Allow(ctx, "ip:5.6.7.8") {
		t.Fatal("other keys are not affected")
	}
}

func TestMemoryStore_WindowResets(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if n, _ := m.Incr(ctx, "k", 10*time.Millisecond); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if n, _ := m.Incr(ctx, "k", 10*time.Millisecond); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	time.Sleep(15 * time.Millisecond)

	if n, _ := m.Incr(ctx, "k", 10*time.Millisecond); n != 1 {
		t.Fatalf("count after window = %d, want 1", n)
	}
}

type failingStore struct{}

func (failingStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	return 0, errors.New("store down")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := New(failingStore{}, Config{Requests: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if !l.Allow(context.Background(), "ip:1.2.3.4") {
			t.Fatal("limiter must allow requests when the store is unavailable")
		}
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := New(NewMemoryStore(), Config{Requests: 2, Window: time.Minute})

	var hits int
	h := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request 3: status %d, want 429", rec.Code)
		}
	}
	if hits != 2 {
		t.Fatalf("handler hit %d times, want 2", hits)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("ClientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("ClientIP with XFF = %q", got)
	}
}
