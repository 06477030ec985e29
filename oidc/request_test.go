// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()
	defaultExpireIn := 1 * time.Minute
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Second)
	}

	testVerifier, err := NewCodeVerifier()
	require.NoError(t, err)

	tests := []struct {
		name            string
		expireIn        time.Duration
		redirectURL     string
		opts            []Option
		wantNowFunc     func() time.Time
		wantRedirectURL string
		wantAudiences   []string
		wantScopes      []string
		wantVerifier    CodeVerifier
		wantPrompts     []Prompt
		wantUILocales   []language.Tag
		wantState       string
		wantNonce       string
		wantMaxAge      uint
		wantErr         bool
		wantIsErr       error
	}{
		{
			name:        "valid-with-all-options",
			expireIn:    defaultExpireIn,
			redirectURL: "http://127.0.0.1:8080/callback",
			opts: []Option{
				WithNow(testNow),
				WithAudiences("bob", "alice"),
				WithScopes("email", "profile", "email"),
				WithPKCE(testVerifier),
				WithPrompts(Login, Consent),
				WithUILocales(language.AmericanEnglish, language.German),
				WithState("test-state"),
				WithNonce("test-nonce"),
				WithMaxAge(60),
			},
			wantNowFunc:     testNow,
			wantRedirectURL: "http://127.0.0.1:8080/callback",
			wantAudiences:   []string{"bob", "alice"},
			wantScopes:      []string{oidc.ScopeOpenID, "email", "profile"},
			wantVerifier:    testVerifier,
			wantPrompts:     []Prompt{Login, Consent},
			wantUILocales:   []language.Tag{language.AmericanEnglish, language.German},
			wantState:       "test-state",
			wantNonce:       "test-nonce",
			wantMaxAge:      60,
		},
		{
			name:            "valid-no-opt",
			expireIn:        defaultExpireIn,
			redirectURL:     "http://127.0.0.1:8080/callback",
			wantRedirectURL: "http://127.0.0.1:8080/callback",
		},
		{
			name:        "zero-expireIn",
			expireIn:    0,
			redirectURL: "http://127.0.0.1:8080/callback",
			wantErr:     true,
			wantIsErr:   ErrInvalidParameter,
		},
		{
			name:      "empty-redirect",
			expireIn:  defaultExpireIn,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:        "equal-state-and-nonce",
			expireIn:    defaultExpireIn,
			redirectURL: "http://127.0.0.1:8080/callback",
			opts:        []Option{WithState("same"), WithNonce("same")},
			wantErr:     true,
			wantIsErr:   ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewRequest(tt.expireIn, tt.redirectURL, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			if tt.wantNowFunc != nil {
				testAssertEqualFunc(t, tt.wantNowFunc, got.nowFunc, "now = %p,want %p", tt.wantNowFunc, got.nowFunc)
			}
			assert.Equal(tt.wantRedirectURL, got.RedirectURL())
			assert.Equal(tt.wantAudiences, got.Audiences())
			assert.Equal(tt.wantScopes, got.Scopes())
			assert.Equal(tt.wantVerifier, got.PKCEVerifier())
			assert.Equal(tt.wantPrompts, got.Prompts())
			assert.Equal(tt.wantUILocales, got.UILocales())
			assert.False(got.IsExpired())
			assert.NotEqual(got.State(), got.Nonce())

			switch tt.wantState {
			case "":
				assert.NotEmpty(got.State())
				assert.NotEmpty(got.Nonce())
			default:
				assert.Equal(tt.wantState, got.State())
				assert.Equal(tt.wantNonce, got.Nonce())
			}

			secs, authAfter := got.MaxAge()
			assert.Equal(tt.wantMaxAge, secs)
			if tt.wantMaxAge > 0 {
				assert.WithinDuration(testNow().Add(-time.Duration(secs)*time.Second), authAfter, time.Second)
			} else {
				assert.True(authAfter.IsZero())
			}
		})
	}
}

func TestReq_IsExpired(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	r, err := NewRequest(time.Minute, "http://127.0.0.1/callback")
	require.NoError(err)
	assert.False(r.IsExpired())

	// the default skew makes a request that expires in less than a second
	// already expired
	r, err = NewRequest(500*time.Millisecond, "http://127.0.0.1/callback")
	require.NoError(err)
	assert.True(r.IsExpired())

	r, err = NewRequest(500*time.Millisecond, "http://127.0.0.1/callback", WithExpirySkew(0))
	require.NoError(err)
	assert.False(r.IsExpired())

	past := func() time.Time { return time.Now().Add(-time.Hour) }
	later := time.Now()
	r, err = NewRequest(time.Minute, "http://127.0.0.1/callback", WithNow(past))
	require.NoError(err)
	r.nowFunc = func() time.Time { return later }
	assert.True(r.IsExpired())
}

func TestReq_copies(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRequest(time.Minute, "http://127.0.0.1/callback",
		WithScopes("email"),
		WithAudiences("aud"),
		WithPrompts(Login),
		WithUILocales(language.English),
	)
	require.NoError(err)

	scopes := r.Scopes()
	scopes[0] = "changed"
	assert.Equal([]string{oidc.ScopeOpenID, "email"}, r.Scopes())

	auds := r.Audiences()
	auds[0] = "changed"
	assert.Equal([]string{"aud"}, r.Audiences())

	prompts := r.Prompts()
	prompts[0] = None
	assert.Equal([]Prompt{Login}, r.Prompts())

	locales := r.UILocales()
	locales[0] = language.German
	assert.Equal([]language.Tag{language.English}, r.UILocales())

	assert.Nil(r.PKCEVerifier())
}
