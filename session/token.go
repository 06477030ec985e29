// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenType is the key of a Token in the Store.
type TokenType string

const (
	IDToken     TokenType = "idToken"
	AccessToken TokenType = "accessToken"
)

// TokenTypes are all the supported token types.
var TokenTypes = []TokenType{IDToken, AccessToken}

func (t TokenType) valid() bool {
	return t == IDToken || t == AccessToken
}

// RedactedToken is the redacted string or json of a Token's value.
const RedactedToken = "[REDACTED: token]"

// Token is an opaque bearer token, its expiry and, for identity tokens, its
// claims.  A Token is never mutated once issued, a renewed token replaces it.
type Token struct {
	// Value is the raw token.
	Value string

	// ExpiresAt is when the token expires.  A zero value never expires.
	ExpiresAt time.Time

	// Claims are the identity token's claims and are nil for access tokens.
	Claims map[string]interface{}
}

// String will redact the token's value.
func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (expires %s)", RedactedToken, t.ExpiresAt.Format(time.RFC3339))
}

// MarshalJSON will redact the token's value.
func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value     string                 `json:"value"`
		ExpiresAt time.Time              `json:"expiresAt"`
		Claims    map[string]interface{} `json:"claims,omitempty"`
	}{
		Value:     RedactedToken,
		ExpiresAt: t.ExpiresAt,
		Claims:    t.Claims,
	})
}

// IsExpired returns true when the token expires at or before now.
func (t *Token) IsExpired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// Copy returns a copy of the token.
func (t *Token) Copy() *Token {
	if t == nil {
		return nil
	}
	cp := &Token{
		Value:     t.Value,
		ExpiresAt: t.ExpiresAt,
	}
	if t.Claims != nil {
		cp.Claims = make(map[string]interface{}, len(t.Claims))
		for k, v := range t.Claims {
			cp.Claims[k] = v
		}
	}
	return cp
}

// Session is a snapshot of the Store.  A nil token is absent.
type Session struct {
	IDToken     *Token `json:"idToken,omitempty"`
	AccessToken *Token `json:"accessToken,omitempty"`
}

// Empty returns true when the session has no tokens.
func (s Session) Empty() bool {
	return s.IDToken == nil && s.AccessToken == nil
}

// Get returns the session's token of type tt, which may be nil.
func (s Session) Get(tt TokenType) *Token {
	switch tt {
	case IDToken:
		return s.IDToken
	case AccessToken:
		return s.AccessToken
	default:
		return nil
	}
}
