package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/session"
)

func newProvider(t *testing.T) (*session.Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewProvider(client, time.Minute, zerolog.Nop()), mr
}

func TestProviderCachesPerSubject(t *testing.T) {
	p, mr := newProvider(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (session.User, error) {
		calls++
		return session.User{ID: "u1", Name: "Ana", Role: "STUDENT"}, nil
	}

	for i := 0; i < 3; i++ {
		u, err := p.Current(ctx, "u1", load)
		if err != nil || u.Name != "Ana" {
			t.Fatalf("current: %+v %v", u, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backend load, got %d", calls)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := p.Current(ctx, "u1", load); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expired entry should reload, calls=%d", calls)
	}

	if err := p.Invalidate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("submita:profile:u1") {
		t.Fatalf("profile still cached after invalidate")
	}
}

func TestProviderLoadErrorIsReturned(t *testing.T) {
	p, _ := newProvider(t)
	boom := errors.New("boom")
	_, err := p.Current(context.Background(), "u1", func(context.Context) (session.User, error) {
		return session.User{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestProviderWithoutCacheAlwaysLoads(t *testing.T) {
	p := session.NewProvider(nil, time.Minute, zerolog.Nop())
	calls := 0
	load := func(context.Context) (session.User, error) {
		calls++
		return session.User{ID: "u1"}, nil
	}
	p.Current(context.Background(), "u1", load)
	p.Current(context.Background(), "u1", load)
	if calls != 2 {
		t.Fatalf("expected two loads, got %d", calls)
	}
}
