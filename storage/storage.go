// Package storage persists opaque blobs under string keys. Callers group keys
// in a Namespace so each namespace can be invalidated on its own.
package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("storage: key not found")

const (
	NamespaceNetworkConfig = "network-config"
	NamespaceSelection     = "selection"
	NamespaceOverrides     = "overrides"
)

// Store is the backend contract. Get returns ErrNotFound for missing keys;
// Delete ignores keys that do not exist.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type Namespace struct {
	store Store
	name  string
}

func NewNamespace(store Store, name string) *Namespace {
	return &Namespace{store: store, name: name}
}

func (n *Namespace) Name() string { return n.name }

func (n *Namespace) key(k string) string {
	return n.name + ":" + k
}

func (n *Namespace) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.key(key))
}

func (n *Namespace) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.key(key), value)
}

func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.key(key))
}

// GetJSON decodes the blob at key into out. Missing keys yield ErrNotFound.
func (n *Namespace) GetJSON(ctx context.Context, key string, out any) error {
	b, err := n.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrapf(err, "decode %s", n.key(key))
	}
	return nil
}

func (n *Namespace) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", n.key(key))
	}
	return n.Set(ctx, key, b)
}

// Clear removes every key of the namespace and nothing else.
func (n *Namespace) Clear(ctx context.Context) error {
	prefix := n.name + ":"
	keys, err := n.store.Keys(ctx, prefix)
	if err != nil {
		return errors.Wrapf(err, "list namespace %s", n.name)
	}
	if len(keys) == 0 {
		return nil
	}
	return n.store.Delete(ctx, keys...)
}

func hasPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}
