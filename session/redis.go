package session

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

// RedisStore keeps the session in Redis so several front ends on different
// hosts can share one login. The key expires together with the token.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore creates a store saving under "session:<profile>".
func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	if client == nil {
		panic("session.NewRedisStore: redis client is nil")
	}
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{client: client, key: sessionKey(profile), now: time.Now}
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, domain.ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		_ = r.client.Del(ctx, r.key).Err()
		return Session{}, domain.ErrNoSession
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return domain.ErrSessionExpired
		}
	}
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func sessionKey(profile string) string {
	return "session:" + profile
}
