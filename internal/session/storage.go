// Package session coordinates a client-side token session: it holds the
// current access/refresh pair, refreshes the access token with at most one
// in-flight network call regardless of caller concurrency, and broadcasts
// login, logout and refresh events to interested parties.
package session

import "sync"

// Tokens is an access/refresh pair. Either field may be empty.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// TokenStorage persists the current token pair between coordinator calls.
// Implementations must be safe for concurrent use.
type TokenStorage interface {
	Load() (Tokens, bool)
	Store(Tokens)
	Clear()
}

// MemoryStorage keeps the pair in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	tokens Tokens
	set    bool
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (s *MemoryStorage) Load() (Tokens, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.set
}

func (s *MemoryStorage) Store(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	s.set = true
}

func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.set = false
}
