// Package notify keeps per-browser flash toasts in Redis so they survive the
// redirect that follows a form post.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/apiclient"
	"submita/internal/ids"
)

type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Warning Level = "warning"
	Info    Level = "info"
)

const CookieName = "submita_flash"

type Toast struct {
	ID      string `json:"id"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	secure bool
	log    zerolog.Logger
}

func NewStore(rdb *redis.Client, ttl time.Duration, secureCookie bool, log zerolog.Logger) *Store {
	return &Store{rdb: rdb, ttl: ttl, secure: secureCookie, log: log.With().Str("component", "notify").Logger()}
}

func queueKey(id string) string { return "submita:flash:" + id }

func (s *Store) Push(ctx context.Context, queueID string, t Toast) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	key := queueKey(queueID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push flash: %w", err)
	}
	return nil
}

// Pop returns and removes every pending toast of a queue, oldest first.
func (s *Store) Pop(ctx context.Context, queueID string) ([]Toast, error) {
	key := queueKey(queueID)
	pipe := s.rdb.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pop flash: %w", err)
	}

	toasts := make([]Toast, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var t Toast
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		toasts = append(toasts, t)
	}
	return toasts, nil
}

// Flash queues a toast for the browser behind c, creating its queue id
// cookie when needed.
func (s *Store) Flash(c *gin.Context, level Level, message string) {
	if s == nil || s.rdb == nil {
		return
	}
	id := s.queueID(c, true)
	if err := s.Push(c.Request.Context(), id, Toast{Level: level, Message: message}); err != nil {
		s.log.Warn().Err(err).Msg("flash not stored")
	}
}

// Failure reports a failed action as "<ação>: <mensagem>". Authentication
// failures are resolved by redirect and never produce a toast.
func (s *Store) Failure(c *gin.Context, action string, err error) {
	if err == nil || apiclient.IsUnauthorized(err) {
		return
	}
	s.Flash(c, Error, ActionMessage(action, err))
}

// Take drains the browser's queue.
func (s *Store) Take(c *gin.Context) []Toast {
	if s == nil || s.rdb == nil {
		return nil
	}
	id := s.queueID(c, false)
	if id == "" {
		return nil
	}
	toasts, err := s.Pop(c.Request.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Msg("flash not read")
		return nil
	}
	return toasts
}

func ActionMessage(action string, err error) string {
	return action + ": " + apiclient.Message(err)
}

func (s *Store) queueID(c *gin.Context, create bool) string {
	if ck, err := c.Request.Cookie(CookieName); err == nil && ids.Valid(ck.Value) {
		return ck.Value
	}
	if !create {
		return ""
	}
	id := ids.New()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	// later reads in the same request must see the new id
	c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	return id
}
