// Package storage defines the durable key-value abstraction the watchlist is
// persisted through, together with the file, redis and memory backends.
// The Postgres backend lives in the repository package.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrInvalidKey is returned for empty keys or keys a backend cannot address.
var ErrInvalidKey = errors.New("storage: invalid key")

// KV is a byte-oriented key-value store. Implementations must be safe for
// concurrent use and Set must be durable by the time it returns.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// HealthChecker is implemented by backends that can report reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ValidateKey rejects keys that no backend should accept.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Memory is a process-local KV. Values are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// HealthCheck always succeeds.
func (m *Memory) HealthCheck(ctx context.Context) error {
	return nil
}
