package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisStore keeps each session's drafts in one hash, one field per step.
// Every write refreshes the hash TTL.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key Key, dst any) error {
	data, err := s.rdb.HGet(ctx, key.sessionKey(), key.Step).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrNoDraft
	}
	if err != nil {
		return fmt.Errorf("get draft: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	sk := key.sessionKey()
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, sk, key.Step, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, sk, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.rdb.HDel(ctx, key.sessionKey(), key.Step).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, organizationID, sessionID uuid.UUID) error {
	k := Key{OrganizationID: organizationID, SessionID: sessionID}
	if err := s.rdb.Del(ctx, k.sessionKey()).Err(); err != nil {
		return fmt.Errorf("delete session drafts: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
