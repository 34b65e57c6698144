package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "triplan:session:"

type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps an opaque session id in the cookie and the user id in Redis.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, log: logger.With().Str("component", "session").Logger()}
}

func (s *RedisStore) Save(w http.ResponseWriter, r *http.Request, userID int64) error {
	id := uuid.NewString()
	if err := s.client.Set(r.Context(), keyPrefix+id, userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	setCookie(w, id, s.ttl)
	return nil
}

func (s *RedisStore) UserID(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, false
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return 0, false
	}

	id, err := s.client.Get(r.Context(), keyPrefix+cookie.Value).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error().Err(err).Msg("session lookup failed")
		}
		return 0, false
	}
	return id, true
}

func (s *RedisStore) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := s.client.Del(r.Context(), keyPrefix+cookie.Value).Err(); err != nil {
			s.log.Warn().Err(err).Msg("session delete failed")
		}
	}
	expireCookie(w)
}
