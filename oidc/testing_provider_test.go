// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTestProvider(t *testing.T) {
	t.Parallel()

	t.Run("discovery", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		require.NotEmpty(tp.CACert())
		resp, err := tp.HTTPClient().Get(tp.Addr() + "/.well-known/openid-configuration")
		require.NoError(err)
		defer resp.Body.Close()
		var doc map[string]interface{}
		require.NoError(json.NewDecoder(resp.Body).Decode(&doc))
		assert.Equal(tp.Addr(), doc["issuer"])
		assert.Equal(tp.Addr()+"/revoke", doc["revocation_endpoint"])
		assert.Equal(tp.Addr()+"/logout", doc["end_session_endpoint"])
		assert.Equal([]interface{}{"S256"}, doc["code_challenge_methods_supported"])
	})
	t.Run("no-tls", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t, WithNoTLS(), WithLogger(hclog.NewNullLogger()))
		assert.Empty(tp.CACert())
		assert.True(strings.HasPrefix(tp.Addr(), "http://"))
	})
	t.Run("testing-logger", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var buf bytes.Buffer
		l, err := NewTestingLogger(hclog.New(&hclog.LoggerOptions{Output: &buf}))
		require.NoError(err)
		tp := StartTestProvider(l, WithNoTLS())
		defer tp.Stop()
		resp, err := http.Get(tp.Addr() + "/.well-known/openid-configuration")
		require.NoError(err)
		resp.Body.Close()
		assert.Equal(http.StatusOK, resp.StatusCode)

		_, err = NewTestingLogger(nil)
		assert.Error(err)

		l.Errorf("bad %s", "thing")
		l.Log("info")
		assert.Contains(buf.String(), "bad thing")
		assert.Panics(l.FailNow)
	})
}

func TestTestProvider_authorize(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)

	authURL := func(mod func(url.Values)) string {
		q := url.Values{
			"response_type": {"code"},
			"client_id":     {TestDefaultClientID},
			"redirect_uri":  {testRedirect},
			"scope":         {"openid email"},
			"state":         {"st_1"},
			"nonce":         {"n_1"},
		}
		mod(q)
		return tp.Addr() + "/authorize?" + q.Encode()
	}
	client := tp.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	tests := []struct {
		name       string
		mod        func(url.Values)
		wantStatus int
		wantError  string
	}{
		{name: "ok", mod: func(url.Values) {}, wantStatus: http.StatusFound},
		{name: "unknown-client", mod: func(q url.Values) { q.Set("client_id", "nope") }, wantStatus: http.StatusBadRequest},
		{name: "bad-redirect", mod: func(q url.Values) { q.Set("redirect_uri", "https://evil.example.com/cb") }, wantStatus: http.StatusBadRequest},
		{name: "missing-openid", mod: func(q url.Values) { q.Set("scope", "email") }, wantStatus: http.StatusFound, wantError: "invalid_scope"},
		{name: "missing-state", mod: func(q url.Values) { q.Del("state") }, wantStatus: http.StatusFound, wantError: "invalid_request"},
		{
			name: "plain-challenge",
			mod: func(q url.Values) {
				q.Set("code_challenge", "abc")
				q.Set("code_challenge_method", "plain")
			},
			wantStatus: http.StatusFound,
			wantError:  "invalid_request",
		},
		{name: "implicit", mod: func(q url.Values) { q.Set("response_type", "id_token") }, wantStatus: http.StatusFound, wantError: "unsupported_response_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			resp, err := client.Get(authURL(tt.mod))
			require.NoError(err)
			resp.Body.Close()
			require.Equal(tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusFound {
				return
			}
			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(err)
			assert.Equal(tt.wantError, loc.Query().Get("error"))
			if tt.wantError == "" {
				assert.NotEmpty(loc.Query().Get("code"))
				assert.Equal("st_1", loc.Query().Get("state"))
			}
		})
	}
}

func TestTestProvider_token(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	p := testNewProvider(t, tp)

	t.Run("code-is-single-use", func(t *testing.T) {
		require := require.New(t)
		req, err := NewRequest(time.Minute, testRedirect)
		require.NoError(err)
		authURL, err := p.AuthURL(context.Background(), req)
		require.NoError(err)
		resp := testAuthorize(t, tp, authURL)
		_, err = p.Exchange(context.Background(), req, resp.Get("state"), resp.Get("code"))
		require.NoError(err)
		_, err = p.Exchange(context.Background(), req, resp.Get("state"), resp.Get("code"))
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})
	t.Run("pkce-verifier-required", func(t *testing.T) {
		require := require.New(t)
		v, err := NewCodeVerifier()
		require.NoError(err)
		req, err := NewRequest(time.Minute, testRedirect, WithPKCE(v))
		require.NoError(err)
		authURL, err := p.AuthURL(context.Background(), req)
		require.NoError(err)
		resp := testAuthorize(t, tp, authURL)

		// same state and nonce, but no verifier
		noVerifier, err := NewRequest(time.Minute, testRedirect, WithState(req.State()), WithNonce(req.Nonce()))
		require.NoError(err)
		_, err = p.Exchange(context.Background(), noVerifier, resp.Get("state"), resp.Get("code"))
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})
}

func TestTestProvider_trustedOrigins(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t, WithNoTLS())

	post := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, tp.Addr()+"/revoke", strings.NewReader(url.Values{
			"token":     {"unknown"},
			"client_id": {TestDefaultClientID},
		}.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert := assert.New(t)
	// every origin is trusted until trusted origins are set
	resp := post("http://anywhere.example.com")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("http://anywhere.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	tp.SetTrustedOrigins("http://127.0.0.1:8080/")
	resp = post("http://127.0.0.1:8080")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("http://127.0.0.1:8080", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = post("http://anywhere.example.com")
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	assert.Empty(resp.Header.Get("Access-Control-Allow-Origin"))

	// server to server calls carry no origin
	resp = post("")
	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestTestProvider_logoutRedirect(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p := testNewProvider(t, tp)
	tk, _ := testSignIn(t, tp, p)
	require.True(tp.SessionActive(TestDefaultSubject))

	endSession, err := p.EndSessionURL(tk.IDToken(), "http://127.0.0.1:8080/callback", "st_logout")
	require.NoError(err)
	client := tp.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Get(endSession)
	require.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusFound, resp.StatusCode)
	assert.Equal("http://127.0.0.1:8080/callback?state=st_logout", resp.Header.Get("Location"))
	assert.False(tp.SessionActive(TestDefaultSubject))

	endSession, err = p.EndSessionURL("", "https://evil.example.com", "")
	require.NoError(err)
	resp, err = client.Get(endSession)
	require.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}
