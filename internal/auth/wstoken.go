package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// WSTokenTTL is how long a stream token is valid
	WSTokenTTL = 30 * time.Second
	// WSTokenLength is the byte length of the token (hex encoded to 2x)
	WSTokenLength = 32
)

// WSTokenStore issues one-time tokens for the event stream. Browsers
// cannot set headers on a WebSocket upgrade, so the stream takes a short
// lived token in the query string instead of the JWT.
type WSTokenStore struct {
	mu     sync.Mutex
	tokens map[string]wsTokenEntry
	now    func() time.Time
}

type wsTokenEntry struct {
	user      User
	createdAt time.Time
}

// NewWSTokenStore creates an empty token store
func NewWSTokenStore() *WSTokenStore {
	return &WSTokenStore{
		tokens: make(map[string]wsTokenEntry),
		now:    time.Now,
	}
}

// Run removes expired tokens until ctx is done
func (s *WSTokenStore) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// Generate creates a new one-time token for user
func (s *WSTokenStore) Generate(user *User) (string, error) {
	b := make([]byte, WSTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.tokens[token] = wsTokenEntry{user: *user, createdAt: s.now()}
	s.mu.Unlock()

	return token, nil
}

// Validate consumes token and returns the user it was issued to
func (s *WSTokenStore) Validate(token string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	delete(s.tokens, token)

	if s.now().Sub(entry.createdAt) > WSTokenTTL {
		return nil, false
	}

	user := entry.user
	return &user, true
}

func (s *WSTokenStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, entry := range s.tokens {
		if now.Sub(entry.createdAt) > WSTokenTTL {
			delete(s.tokens, token)
		}
	}
}
