package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"

	"github.com/nhle/webmail/internal/model"
)

// defaultBackends is the backend preference order when none is configured.
var defaultBackends = []keyring.BackendType{
	keyring.KeychainBackend,
	keyring.SecretServiceBackend,
	keyring.WinCredBackend,
	keyring.PassBackend,
	keyring.FileBackend,
}

// openKeyring returns a configured keyring instance.
func openKeyring(cfg model.CredentialConfig) (keyring.Keyring, error) {
	backends := defaultBackends
	if len(cfg.Backends) > 0 {
		backends = make([]keyring.BackendType, 0, len(cfg.Backends))
		for _, b := range cfg.Backends {
			backends = append(backends, keyring.BackendType(b))
		}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              cfg.Service,
		AllowedBackends:          backends,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store holds the access credential. The token is cached in memory and
// written through to the keyring so it survives restarts. All reads go
// through Token, so a replacement is visible to every later request.
type Store struct {
	mu    sync.RWMutex
	ring  keyring.Keyring
	key   string
	token string
}

// Open opens the system keyring described by cfg and loads the stored
// credential, if any.
func Open(cfg model.CredentialConfig) (*Store, error) {
	ring, err := openKeyring(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(ring, cfg.Key)
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring, key string) (*Store, error) {
	s := &Store{ring: ring, key: key}

	item, err := ring.Get(key)
	switch {
	case err == nil:
		s.token = string(item.Data)
	case errors.Is(err, keyring.ErrKeyNotFound):
	default:
		return nil, fmt.Errorf("getting credential %q: %w", key, err)
	}

	return s, nil
}

// Token returns the current access token, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a credential is present.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Set replaces the credential. The in-memory value is updated even when
// persisting fails, so the running session keeps working.
func (s *Store) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	err := s.ring.Set(keyring.Item{
		Key:  s.key,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}

	return nil
}

// Clear removes the credential from memory and from the keyring.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	err := s.ring.Remove(s.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", s.key, err)
	}

	return nil
}
