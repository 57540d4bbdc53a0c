// Package draftstore keeps unsaved wizard list state (phones, coverages,
// authorizations, medications) between requests. Drafts are never written
// to Postgres; they expire after a TTL.
package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoDraft is returned by Get when nothing is stored for the key.
var ErrNoDraft = errors.New("draft not found")

// Key addresses one step's draft inside one intake session.
type Key struct {
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
	Step           string
}

func (k Key) sessionKey() string {
	return fmt.Sprintf("intake:draft:%s:%s", k.OrganizationID, k.SessionID)
}

// Store is implemented by the Redis and in-memory stores.
type Store interface {
	Get(ctx context.Context, key Key, dst any) error
	Put(ctx context.Context, key Key, v any) error
	Delete(ctx context.Context, key Key) error
	DeleteSession(ctx context.Context, organizationID, sessionID uuid.UUID) error
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.entries[key.sessionKey()]
	if !ok {
		return ErrNoDraft
	}
	e, ok := steps[key.Step]
	if !ok {
		return ErrNoDraft
	}
	if s.ttl > 0 && s.now().After(e.expires) {
		delete(steps, key.Step)
		return ErrNoDraft
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	return nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := key.sessionKey()
	steps, ok := s.entries[sk]
	if !ok {
		steps = make(map[string]memoryEntry)
		s.entries[sk] = steps
	}
	steps[key.Step] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if steps, ok := s.entries[key.sessionKey()]; ok {
		delete(steps, key.Step)
	}
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, organizationID, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Key{OrganizationID: organizationID, SessionID: sessionID}.sessionKey())
	return nil
}
