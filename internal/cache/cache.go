// Package cache provides the key/value store backing the agent resilience
// layer. Backends are best-effort: a backend error is surfaced as a typed
// CacheError so callers can log it and fall through to live invocation.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prospero-intel/prospero/config"
)

// Store is a keyed value store with TTL support.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Name() string
}

// Open selects a backend from configuration: the HTTP REST transport is
// attempted first, then the Redis TCP transport, then the bounded in-memory
// map. When cfg.Required is set and no remote backend answers, an error is
// returned so the caller can fail preflight.
func Open(ctx context.Context, cfg config.CacheConfig, logger *log.Logger) (Store, error) {
	if cfg.RESTEndpoint != "" {
		rest := NewREST(cfg.RESTEndpoint, cfg.RESTToken)
		if err := rest.Ping(ctx); err == nil {
			logger.Printf("cache backend: rest (%s)", cfg.RESTEndpoint)
			return rest, nil
		} else {
			logger.Printf("cache rest backend unreachable, trying redis: %v", err)
		}
	}
	if cfg.RedisHost != "" {
		rc, err := NewRedis(ctx, cfg)
		if err == nil {
			logger.Printf("cache backend: redis (%s:%s)", cfg.RedisHost, cfg.RedisPort)
			return rc, nil
		}
		logger.Printf("cache redis backend unreachable: %v", err)
	}
	if cfg.Required {
		return nil, fmt.Errorf("cache required but no remote backend reachable")
	}
	logger.Printf("cache backend: in-memory (max %d entries)", cfg.MemoryMax)
	return NewMemory(cfg.MemoryMax), nil
}

// Memory is a bounded in-memory store with LRU eviction.
type Memory struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewMemory creates an in-memory store holding at most max entries.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 1024
	}
	return &Memory{
		max:     max,
		entries: make(map[string]*list.Element, max),
		order:   list.New(),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.order.Remove(el)
		delete(m.entries, key)
		return "", false, nil
	}
	m.order.MoveToFront(el)
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return nil
	}
	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	for len(m.entries) > m.max {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
	return nil
}
