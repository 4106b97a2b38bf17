package secrets

import (
	"os"
	"strings"
)

// EnvironmentStore reads secrets from environment variables. It is read-only.
type EnvironmentStore struct {
	vars map[string][]string
}

// NewEnvironmentStore creates a store that maps a secret name to
// IMGHARVEST_<NAME>, plus ANTHROPIC_API_KEY for the assist key.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{
		vars: map[string][]string{
			AssistAPIKey: {"IMGHARVEST_ASSIST_API_KEY", "ANTHROPIC_API_KEY"},
		},
	}
}

// Get returns the first non-empty variable for name
func (e *EnvironmentStore) Get(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	for _, v := range e.variables(name) {
		if value := os.Getenv(v); value != "" {
			return value, nil
		}
	}
	return "", ErrNotFound
}

// Set is not supported for environment variables
func (e *EnvironmentStore) Set(name, value string) error {
	return ErrStoreUnavailable
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) variables(name string) []string {
	if vars, ok := e.vars[name]; ok {
		return vars
	}
	return []string{"IMGHARVEST_" + strings.ToUpper(name)}
}
