// Package blob archives the raw files of an upload batch.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store keeps uploaded file contents keyed by namespace and object name.
type Store interface {
	Put(ctx context.Context, namespace, name, contentType string, data []byte) error
	Get(ctx context.Context, namespace, name string) ([]byte, error)
	Delete(ctx context.Context, namespace, name string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, namespace, name, _ string, data []byte) error {
	key, err := objectKey(namespace, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, namespace, name string) ([]byte, error) {
	key, err := objectKey(namespace, name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, namespace, name string) error {
	key, err := objectKey(namespace, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func objectKey(namespace, name string) (string, error) {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if namespace == "" {
		return "", fmt.Errorf("blob namespace is required")
	}
	if name == "" {
		return "", fmt.Errorf("blob name is required")
	}
	return namespace + "/" + name, nil
}
