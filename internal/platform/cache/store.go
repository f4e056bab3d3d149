package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "dashclient"
	versionSuffix    = "version"
	bumpSuffix       = "bump"
)

// ErrLoaderRequired is returned when FetchJSON has nothing to populate from.
var ErrLoaderRequired = errors.New("cache: loader required")

// Store is a versioned JSON cache on Redis. Bumping the version makes every
// older key unreachable without scanning.
type Store struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// NewStore wraps client. A nil client turns every call into a pass-through.
func NewStore(client *redis.Client, ttl time.Duration, namespace string) *Store {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Store{client: client, ttl: ttl, namespace: namespace}
}

func (s *Store) versionKey() string { return s.namespace + ":" + versionSuffix }

// Channel is the pub/sub channel that carries version bumps.
func (s *Store) Channel() string { return s.namespace + ":" + bumpSuffix }

// Version returns the current cache version, initialising when missing.
func (s *Store) Version(ctx context.Context) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Get(ctx, s.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, s.versionKey(), 1, 0).Err(); err != nil {
			return 0, err
		}
		return s.client.Get(ctx, s.versionKey()).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := s.client.Set(ctx, s.versionKey(), ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes a namespaced key carrying the current version.
func (s *Store) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if s == nil || s.client == nil {
		return strings.Join(parts, ":"), nil
	}
	ver, err := s.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:v%d", s.namespace, strings.Join(parts, ":"), ver), nil
}

// FetchJSON loads a cached value into dest or populates it using loader.
func (s *Store) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, ErrLoaderRequired
	}
	if s != nil && s.client != nil {
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if s != nil && s.client != nil {
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every key by incrementing the version and announcing it.
func (s *Store) Bump(ctx context.Context) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Incr(ctx, s.versionKey()).Result()
	if err != nil {
		return 0, err
	}
	return ver, s.client.Publish(ctx, s.Channel(), strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation calls onBump for every version announced by another
// process until ctx ends.
func (s *Store) ListenForInvalidation(ctx context.Context, onBump func(version int64)) error {
	if s == nil || s.client == nil {
		return nil
	}
	pubsub := s.client.Subscribe(ctx, s.Channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("cache: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
