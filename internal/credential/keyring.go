// Package credential keeps secrets in the operating system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// ServiceName is the keyring service secrets are stored under.
const ServiceName = "clinbox"

// ErrNotFound is returned when no secret is stored for a key.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the platform keyring. The encrypted file backend in dir is
// used where no native keyring exists.
func Open(dir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir: dir,
		FilePasswordFunc: keyring.FixedStringPrompt(
			"clinbox-file-key",
		),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	return New(ring), nil
}

// New wraps an already open keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get returns the secret stored for key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)

	case err != nil:
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores value for key, replacing any previous secret.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "clinbox secret",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes the secret for key. Removing a missing key is not an
// error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
