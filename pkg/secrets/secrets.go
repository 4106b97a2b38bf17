package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AssistAPIKey names the API key used by the extraction-assist adapter
const AssistAPIKey = "assist_api_key"

// Errors
var (
	ErrNotFound         = errors.New("secret not found")
	ErrInvalidName      = errors.New("invalid secret name")
	ErrStoreUnavailable = errors.New("secret store unavailable")
)

// Store is a backend holding named secrets
type Store interface {
	// Get returns the secret or ErrNotFound
	Get(name string) (string, error)

	// Set saves the secret, replacing any previous value
	Set(name, value string) error

	// Delete removes the secret or returns ErrNotFound
	Delete(name string) error
}

// Manager looks secrets up across several stores in priority order
type Manager struct {
	stores []Store
}

// NewManager creates a manager reading the environment first, then the
// system keyring when one is reachable, then the encrypted file.
func NewManager() (*Manager, error) {
	stores := []Store{NewEnvironmentStore()}

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fileStore, err := NewEncryptedFileStore(filepath.Join(configDir, "secrets.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Get returns the secret from the first store that has it
func (m *Manager) Get(name string) (string, error) {
	for _, store := range m.stores {
		if value, err := store.Get(name); err == nil && value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Set saves the secret in the first store that accepts writes
func (m *Manager) Set(name, value string) error {
	if name == "" || value == "" {
		return ErrInvalidName
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Set(name, value)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store secret: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Delete removes the secret from every writable store
func (m *Manager) Delete(name string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// ConfigDir returns the per-user imgharvest directory, creating it if needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "imgharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "imgharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "imgharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "imgharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first 4 and last 4 characters of a secret
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
