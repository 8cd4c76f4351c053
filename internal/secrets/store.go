// Package secrets provides the credential store, log redaction, and
// subprocess environment sanitization. Secret values are loaded once from
// the daemon's environment and handed to pipeline steps by name; they are
// stripped from all log output.
package secrets

import (
	"os"
	"slices"
	"sync"
)

// Store is a thread-safe store for secret values, keyed by the environment
// variable name they were declared under. It is the single source of truth
// for secrets at runtime.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty secret store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// LoadEnv reads the named variables from the process environment into the
// store. Names that are unset or empty are returned as missing; they are
// not stored.
func (s *Store) LoadEnv(names []string) (missing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			missing = append(missing, name)
			continue
		}
		s.values[name] = value
	}
	return missing
}

// Set stores a secret, overwriting any existing value under the same name.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Get returns the secret value and true, or "" and false if not present.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether a secret with the given name exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[name]
	return ok
}

// Names returns a sorted list of stored secret names.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Values returns all non-empty secret values in unspecified order.
// Intended for registering literals with a Redactor.
func (s *Store) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.values))
	for _, v := range s.values {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Len returns the number of stored secrets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
