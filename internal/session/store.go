package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Store holds per-session client state: the guest identifier and a cached
// copy of the catalog. Everything in it expires with the session.
type Store interface {
	GuestID(ctx context.Context, sessionID string) (string, error)
	SetGuestID(ctx context.Context, sessionID, guestID string) error
	ClearGuestID(ctx context.Context, sessionID string) error
	CachedCatalog(ctx context.Context, sessionID string) ([]domain.Product, bool, error)
	CacheCatalog(ctx context.Context, sessionID string, products []domain.Product) error
	Delete(ctx context.Context, sessionID string) error
}

const keyPrefix = "storefront:session:"

func guestKey(sessionID string) string {
	return keyPrefix + sessionID + ":guest_id"
}

func catalogKey(sessionID string) string {
	return keyPrefix + sessionID + ":catalog"
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed Store. Keys expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) GuestID(ctx context.Context, sessionID string) (string, error) {
	id, err := s.client.Get(ctx, guestKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read guest id: %w", err)
	}
	return id, nil
}

func (s *redisStore) SetGuestID(ctx context.Context, sessionID, guestID string) error {
	if err := s.client.Set(ctx, guestKey(sessionID), guestID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store guest id: %w", err)
	}
	return nil
}

func (s *redisStore) ClearGuestID(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, guestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear guest id: %w", err)
	}
	return nil
}

func (s *redisStore) CachedCatalog(ctx context.Context, sessionID string) ([]domain.Product, bool, error) {
	raw, err := s.client.Get(ctx, catalogKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached catalog: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached catalog: %w", err)
	}
	return products, true, nil
}

func (s *redisStore) CacheCatalog(ctx context.Context, sessionID string, products []domain.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := s.client.Set(ctx, catalogKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache catalog: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, guestKey(sessionID), catalogKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

type memoryEntry struct {
	guestID string
	catalog []domain.Product
	cached  bool
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an in-process Store for single-instance deployments
// and tests. Entries live until Delete.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *memoryStore) entry(sessionID string) *memoryEntry {
	e, ok := s.entries[sessionID]
	if !ok {
		e = &memoryEntry{}
		s.entries[sessionID] = e
	}
	return e
}

func (s *memoryStore) GuestID(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sessionID]; ok {
		return e.guestID, nil
	}
	return "", nil
}

func (s *memoryStore) SetGuestID(ctx context.Context, sessionID, guestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(sessionID).guestID = guestID
	return nil
}

func (s *memoryStore) ClearGuestID(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sessionID]; ok {
		e.guestID = ""
	}
	return nil
}

func (s *memoryStore) CachedCatalog(ctx context.Context, sessionID string) ([]domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || !e.cached {
		return nil, false, nil
	}
	return append([]domain.Product(nil), e.catalog...), true, nil
}

func (s *memoryStore) CacheCatalog(ctx context.Context, sessionID string, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sessionID)
	e.catalog = append([]domain.Product(nil), products...)
	e.cached = true
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
