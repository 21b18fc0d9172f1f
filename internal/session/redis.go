package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Addr is the Redis server address, e.g. "localhost:6379"
	Addr     string
	Password string
	DB       int
	// KeyPrefix is prepended to the portal name
	KeyPrefix   string
	DialTimeout time.Duration
}

// DefaultRedisConfig returns a configuration for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		KeyPrefix:   "ibank:session:",
		DialTimeout: 5 * time.Second,
	}
}

// RedisStore keeps the session of each portal under its own key.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// NewRedisStore connects to Redis and scopes the store to one portal.
func NewRedisStore(config RedisConfig, portal string) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{config.Addr},
		Password:     config.Password,
		SelectDB:     config.DB,
		DisableCache: true,
		Dialer:       net.Dialer{Timeout: config.DialTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, key: config.KeyPrefix + portal}, nil
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(r.key).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", ErrCorrupt, r.key, err)
	}
	if s == nil {
		s = Session{}
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if s == nil {
		s = Session{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Do(ctx, r.client.B().Set().Key(r.key).Value(string(raw)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() {
	r.client.Close()
}
