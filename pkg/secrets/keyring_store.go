package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "imgharvest"

// KeyringStore keeps secrets in the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore returns an error when no keychain is reachable, which is
// common on headless Linux.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{service: keyringService}, nil
}

// Get reads a secret from the keychain
func (k *KeyringStore) Get(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}

	value, err := keyring.Get(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	return value, nil
}

// Set writes a secret to the keychain
func (k *KeyringStore) Set(name, value string) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := keyring.Set(k.service, name, value); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Delete removes a secret from the keychain
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidName
	}

	err := keyring.Delete(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
