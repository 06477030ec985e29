// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package session holds the tokens of the signed in user: the session store
// read by views and written only by the auth flow controller.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Store is the single source of truth for the current tokens, keyed by
// TokenType.  It is safe for concurrent use; the callback server writes to
// it from its own goroutine.  Tokens go in and come out as copies.
type Store struct {
	mu     sync.RWMutex
	tokens map[TokenType]*Token

	path   string
	clock  clockwork.Clock
	logger hclog.Logger
}

// NewStore creates an empty Store, or loads the tokens persisted at the
// WithPath file when one exists.
//
// Supported options: WithPath, WithClock, WithLogger
func NewStore(opt ...Option) (*Store, error) {
	const op = "session.NewStore"
	opts := getStoreOpts(opt...)
	s := &Store{
		tokens: map[TokenType]*Token{},
		path:   opts.withPath,
		clock:  opts.withClock,
		logger: opts.withLogger.Named("session"),
	}
	if s.path != "" {
		tokens, err := load(s.path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.tokens = tokens
		s.logger.Debug("loaded session", "path", s.path, "tokens", len(tokens))
	}
	return s, nil
}

// Now returns the current time of the store's clock.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Get returns a copy of the token of type tt.  The bool is false when the
// token is absent.
func (s *Store) Get(tt TokenType) (*Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tt]
	if !ok {
		return nil, false
	}
	return t.Copy(), true
}

// Put stores a copy of the token as type tt, replacing any existing token.
func (s *Store) Put(tt TokenType, t *Token) error {
	return s.PutTokens(map[TokenType]*Token{tt: t})
}

// PutTokens stores copies of the tokens, keeping any stored token of another
// type.  Either every token is stored or, on error, none are.
func (s *Store) PutTokens(tokens map[TokenType]*Token) error {
	const op = "Store.PutTokens"
	return s.write(op, tokens, false)
}

// Replace stores copies of the tokens as the whole session: stored tokens of
// a type missing from tokens are dropped in the same write.  Either the
// session is replaced or, on error, left unchanged.
func (s *Store) Replace(tokens map[TokenType]*Token) error {
	const op = "Store.Replace"
	return s.write(op, tokens, true)
}

func (s *Store) write(op string, tokens map[TokenType]*Token, replace bool) error {
	if len(tokens) == 0 {
		return fmt.Errorf("%s: no tokens: %w", op, ErrInvalidParameter)
	}
	for tt, t := range tokens {
		switch {
		case !tt.valid():
			return fmt.Errorf("%s: unknown token type %q: %w", op, tt, ErrInvalidParameter)
		case t == nil:
			return fmt.Errorf("%s: %s is nil: %w", op, tt, ErrNilParameter)
		case t.Value == "":
			return fmt.Errorf("%s: %s value is empty: %w", op, tt, ErrInvalidParameter)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	updated := make(map[TokenType]*Token, len(s.tokens)+len(tokens))
	if !replace {
		for tt, t := range s.tokens {
			updated[tt] = t
		}
	}
	for tt, t := range tokens {
		updated[tt] = t.Copy()
	}
	if s.path != "" {
		if err := save(s.path, updated); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	s.tokens = updated
	for tt, t := range tokens {
		s.logger.Debug("stored token", "type", tt, "token", t)
	}
	return nil
}

// Delete removes the token of type tt, if present.  Like Clear it cannot
// fail: persistence errors are logged.
func (s *Store) Delete(tt TokenType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tt]; !ok {
		return
	}
	updated := make(map[TokenType]*Token, len(s.tokens))
	for k, t := range s.tokens {
		if k != tt {
			updated[k] = t
		}
	}
	s.tokens = updated
	if s.path != "" {
		var err error
		if len(updated) == 0 {
			err = remove(s.path)
		} else {
			err = save(s.path, updated)
		}
		if err != nil {
			s.logger.Error("unable to persist session", "path", s.path, "error", err)
		}
	}
	s.logger.Debug("deleted token", "type", tt)
}

// Clear removes every token.  It cannot fail: the in-memory session is
// always cleared and persistence errors are logged.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[TokenType]*Token{}
	if s.path != "" {
		if err := remove(s.path); err != nil {
			s.logger.Error("unable to remove persisted session", "path", s.path, "error", err)
		}
	}
	s.logger.Debug("cleared session")
}

// Session returns a snapshot of the store.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		IDToken:     s.tokens[IDToken].Copy(),
		AccessToken: s.tokens[AccessToken].Copy(),
	}
}

// Expired returns true when the token of type tt is present and expired,
// using the store's clock.
func (s *Store) Expired(tt TokenType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tt]
	return ok && t.IsExpired(s.clock.Now())
}
