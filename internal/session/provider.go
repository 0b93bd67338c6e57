package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/api"
)

// User is the profile owned by the provider for one browsing session.
type User = api.User

// ProfileLoader fetches the current profile from the backend.
type ProfileLoader func(ctx context.Context) (User, error)

// Provider caches profiles in Redis per subject. A cache failure never fails
// the request: the profile is simply fetched again.
type Provider struct {
	cache *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

func NewProvider(cache *redis.Client, ttl time.Duration, log zerolog.Logger) *Provider {
	return &Provider{cache: cache, ttl: ttl, log: log.With().Str("component", "session").Logger()}
}

func profileKey(subject string) string { return "submita:profile:" + subject }

// Current returns the cached profile for subject, loading it on a miss.
func (p *Provider) Current(ctx context.Context, subject string, load ProfileLoader) (User, error) {
	if u, ok := p.cached(ctx, subject); ok {
		return u, nil
	}
	return p.Refresh(ctx, subject, load)
}

// Refresh always loads from the backend and replaces the cached profile.
func (p *Provider) Refresh(ctx context.Context, subject string, load ProfileLoader) (User, error) {
	u, err := load(ctx)
	if err != nil {
		return User{}, err
	}
	p.store(ctx, subject, u)
	return u, nil
}

// Replace stores a profile obtained elsewhere, such as the login response.
func (p *Provider) Replace(ctx context.Context, u User) {
	if u.ID == "" {
		return
	}
	p.store(ctx, u.ID, u)
}

func (p *Provider) Invalidate(ctx context.Context, subject string) error {
	if p == nil || p.cache == nil || subject == "" {
		return nil
	}
	if err := p.cache.Del(ctx, profileKey(subject)).Err(); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

func (p *Provider) cached(ctx context.Context, subject string) (User, bool) {
	if p == nil || p.cache == nil || subject == "" {
		return User{}, false
	}
	raw, err := p.cache.Get(ctx, profileKey(subject)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.log.Warn().Err(err).Msg("profile cache read failed")
		}
		return User{}, false
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		p.log.Warn().Err(err).Msg("profile cache entry corrupt")
		return User{}, false
	}
	return u, true
}

func (p *Provider) store(ctx context.Context, subject string, u User) {
	if p == nil || p.cache == nil || subject == "" {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, profileKey(subject), raw, p.ttl).Err(); err != nil {
		p.log.Warn().Err(err).Msg("profile cache write failed")
	}
}
