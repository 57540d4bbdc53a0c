package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Revocations records bearer tokens that must stop working before they
// expire: single tokens by JTI, or every token issued to a user up to a
// cutoff (staff offboarding).
type Revocations interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeUser(ctx context.Context, userID string, cutoff time.Time) error
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// userCutoffTTL bounds how long a user cutoff is kept. Tokens older than
// this are expired anyway.
const userCutoffTTL = 24 * time.Hour

// issuedBefore reports whether claims were issued at or before cutoff.
// Tokens without iat are treated as old.
func issuedBefore(claims *Claims, cutoff time.Time) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return !claims.IssuedAt.Time.After(cutoff)
}

// MemoryRevocations keeps revocations in process memory. Expired entries
// are swept on every write.
type MemoryRevocations struct {
	mu      sync.RWMutex
	tokens  map[string]time.Time // jti -> token expiry
	cutoffs map[string]time.Time // user -> cutoff
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		tokens:  make(map[string]time.Time),
		cutoffs: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryRevocations) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.tokens[jti] = expiresAt
	return nil
}

func (s *MemoryRevocations) RevokeUser(_ context.Context, userID string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.cutoffs[userID] = cutoff
	return nil
}

func (s *MemoryRevocations) IsRevoked(_ context.Context, claims *Claims) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if claims.ID != "" {
		if _, ok := s.tokens[claims.ID]; ok {
			return true, nil
		}
	}
	if cutoff, ok := s.cutoffs[claims.Subject]; ok && issuedBefore(claims, cutoff) {
		return true, nil
	}
	return false, nil
}

// Count returns the number of tracked token and user revocations.
func (s *MemoryRevocations) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens) + len(s.cutoffs)
}

func (s *MemoryRevocations) sweepLocked() {
	now := s.now()
	for jti, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, jti)
		}
	}
	for user, cutoff := range s.cutoffs {
		if now.After(cutoff.Add(userCutoffTTL)) {
			delete(s.cutoffs, user)
		}
	}
}

// RedisRevocations shares revocations between replicas. Keys expire with
// the tokens they describe.
type RedisRevocations struct {
	rdb *goredis.Client
}

func NewRedisRevocations(rdb *goredis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb}
}

func tokenKey(jti string) string   { return "intake:revoked:jti:" + jti }
func userKey(userID string) string { return "intake:revoked:user:" + userID }

func (s *RedisRevocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, tokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocations) RevokeUser(ctx context.Context, userID string, cutoff time.Time) error {
	if err := s.rdb.Set(ctx, userKey(userID), cutoff.Unix(), userCutoffTTL).Err(); err != nil {
		return fmt.Errorf("revoke user: %w", err)
	}
	return nil
}

func (s *RedisRevocations) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	keys := []string{userKey(claims.Subject)}
	if claims.ID != "" {
		keys = append(keys, tokenKey(claims.ID))
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	if len(vals) > 1 && vals[1] != nil {
		return true, nil
	}
	if raw, ok := vals[0].(string); ok {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false, fmt.Errorf("parse user cutoff: %w", err)
		}
		return issuedBefore(claims, time.Unix(unix, 0)), nil
	}
	return false, nil
}
