// Package keybackend provides bucketry.Auth implementations for secret key retrieval.
package keybackend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sagarc03/bucketry"
)

// MapSecretStore retrieves keys from an in-memory map.
// Suitable for configuration file-based key storage.
type MapSecretStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

var _ bucketry.Auth = (*MapSecretStore)(nil)

// NewMapSecretStore creates a new map-based secret store with the given access key to secret key mapping.
// The map is copied.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	m := make(map[string]string, len(keys))
	for k, v := range keys {
		m[k] = v
	}
	return &MapSecretStore{keys: m}
}

// SecretKey retrieves the secret key for the given access key from the map.
func (s *MapSecretStore) SecretKey(_ context.Context, accessKey string) (string, error) {
	s.mu.RLock()
	secretKey, found := s.keys[accessKey]
	s.mu.RUnlock()

	if !found {
		return "", fmt.Errorf("%w: %w", ErrKeyNotFound, bucketry.ErrUnauthorized)
	}
	return secretKey, nil
}

// Set adds or replaces a key pair.
func (s *MapSecretStore) Set(accessKey, secretKey string) {
	s.mu.Lock()
	s.keys[accessKey] = secretKey
	s.mu.Unlock()
}

// AccessKeys returns the known access keys in sorted order.
func (s *MapSecretStore) AccessKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
