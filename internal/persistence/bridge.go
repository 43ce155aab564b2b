// Package persistence mirrors a fixed whitelist of wizard state fragments into
// durable per-browser key-value storage.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnmanagedKey is returned when a caller uses a key outside ManagedKeys.
var ErrUnmanagedKey = errors.New("key is not managed by the persistence bridge")

// KV is a namespaced byte store. Get reports found=false for missing keys.
type KV interface {
	Get(ctx context.Context, namespace, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// Bridge is the only component that touches storage. One Bridge serves one
// browser namespace.
type Bridge struct {
	kv        KV
	namespace string
	logger    *zap.Logger
}

// NewBridge creates a bridge scoped to namespace (the browser id).
func NewBridge(kv KV, namespace string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		kv:        kv,
		namespace: namespace,
		logger:    logger.With(zap.String("namespace", namespace)),
	}
}

// Write JSON-encodes value and stores it under key, overwriting any prior value.
func (b *Bridge) Write(ctx context.Context, key Key, value any) error {
	if !IsManaged(key) {
		return fmt.Errorf("write %q: %w", key, ErrUnmanagedKey)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := b.kv.Put(ctx, b.namespace, string(key), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Read decodes the value stored under key into dst. It returns false when the
// key is absent or holds malformed JSON; malformed values are logged and
// otherwise treated as absent. Only storage failures produce an error.
func (b *Bridge) Read(ctx context.Context, key Key, dst any) (bool, error) {
	if !IsManaged(key) {
		return false, fmt.Errorf("read %q: %w", key, ErrUnmanagedKey)
	}
	data, found, err := b.kv.Get(ctx, b.namespace, string(key))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		b.logger.Warn("discarding malformed snapshot value", zap.String("key", string(key)), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Delete removes key.
func (b *Bridge) Delete(ctx context.Context, key Key) error {
	if !IsManaged(key) {
		return fmt.Errorf("delete %q: %w", key, ErrUnmanagedKey)
	}
	if err := b.kv.Delete(ctx, b.namespace, string(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SessionReset compares newSessionID with the last recorded one. When a prior
// id exists and differs, every managed key is cleared before the new id is
// recorded. The first id seen is recorded without clearing. It reports whether
// a clear happened.
func (b *Bridge) SessionReset(ctx context.Context, newSessionID string) (bool, error) {
	var previous string
	found, err := b.Read(ctx, KeySessionID, &previous)
	if err != nil {
		return false, err
	}

	if found && previous == newSessionID {
		return false, nil
	}

	cleared := false
	if found {
		for _, k := range ManagedKeys {
			if k == KeySessionID {
				continue
			}
			if err := b.Delete(ctx, k); err != nil {
				return false, err
			}
		}
		cleared = true
		b.logger.Info("session changed, cleared snapshot",
			zap.String("previous_session", previous),
			zap.String("session", newSessionID))
	}

	if err := b.Write(ctx, KeySessionID, newSessionID); err != nil {
		return false, err
	}
	return cleared, nil
}

// Snapshot returns every present managed key with its raw JSON value.
// Malformed values are skipped.
func (b *Bridge) Snapshot(ctx context.Context) (map[Key]json.RawMessage, error) {
	out := make(map[Key]json.RawMessage, len(ManagedKeys))
	for _, k := range ManagedKeys {
		var raw json.RawMessage
		found, err := b.Read(ctx, k, &raw)
		if err != nil {
			return nil, err
		}
		if found {
			out[k] = raw
		}
	}
	return out, nil
}
