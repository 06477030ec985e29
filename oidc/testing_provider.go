// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/capdemo/oidc/internal/strutils"
	"github.com/hashicorp/go-hclog"
)

// TestProvider is a local http server that supports test provider
// capabilities which makes writing tests much easier.  It implements the
// authorization code flow with PKCE, userinfo, token revocation (RFC 7009)
// and RP-initiated logout, including a direct (no redirect) logout.
//
// Direct API calls (revocation and direct logout) are subject to the
// provider's trusted origins: a request carrying an Origin header that isn't
// trusted is rejected with a 403 and no Access-Control-Allow-Origin header,
// which is how a browser observes a CORS failure.  See SetTrustedOrigins.
//
// Most of this is from Consul's oauthtest package with a few changes so it
// could become part of this package's public testing API.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	jwks       *jose.JSONWebKeySet
	logger     hclog.Logger

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	trustedOrigins      []string
	replySubject        string
	replyUserinfo       map[string]interface{}
	replyExpiry         time.Duration
	customClaims        map[string]interface{}
	denyConsent         bool
	omitIDToken         bool
	disableUserInfo     bool
	disableRevocation   bool
	disableEndSession   bool
	nowFunc             func() time.Time

	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	keyID      string

	// pending authorization codes, keyed by code
	codes map[string]*testAuthCode
	// access tokens issued, mapped to their revoked status
	accessTokens map[string]bool
	// subjects with an active session at the provider
	sessions map[string]bool

	t TestingT
}

type testAuthCode struct {
	nonce         string
	redirectURI   string
	challenge     string
	challengeType string
	scopes        []string
	authTime      time.Time
}

// Default values used by a new TestProvider
const (
	TestDefaultClientID = "test-rp"
	TestDefaultSubject  = "alice@example.com"
	TestDefaultExpiry   = 5 * time.Minute
	testDefaultKeyID    = "test-key"
)

// StartTestProvider creates and starts a running TestProvider http server.
// The WithTestPort, WithNoTLS and WithLogger options are supported.  The
// provider is stopped by t.Cleanup(...) when t supports it, otherwise Stop()
// must be called.
//
// The provider has no client secret (a public client), a subject of
// "alice@example.com", allows any loopback redirect URI and trusts every
// origin until told otherwise.
func StartTestProvider(t TestingT, opt ...Option) *TestProvider {
	if v, ok := t.(HelperT); ok {
		v.Helper()
	}
	opts := getTestProviderOpts(opt...)

	p := &TestProvider{
		t:            t,
		logger:       opts.withLogger,
		clientID:     TestDefaultClientID,
		replySubject: TestDefaultSubject,
		replyUserinfo: map[string]interface{}{
			"sub":   TestDefaultSubject,
			"email": TestDefaultSubject,
			"name":  "Alice Smith",
		},
		replyExpiry:  TestDefaultExpiry,
		keyID:        testDefaultKeyID,
		codes:        map[string]*testAuthCode{},
		accessTokens: map[string]bool{},
		sessions:     map[string]bool{},
		allowedRedirectURIs: []string{
			"http://127.0.0.1/callback",
			"http://localhost/callback",
		},
	}
	if p.logger == nil {
		p.logger = hclog.NewNullLogger()
	}
	p.publicKey, p.signingKey = TestGenerateKeys(t)
	p.jwks = &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       p.publicKey,
				KeyID:     p.keyID,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}

	p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	switch opts.withNoTLS {
	case true:
		p.httpServer.Start()
	default:
		p.httpServer.StartTLS()
		var buf bytes.Buffer
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw}); err != nil {
			t.Errorf("%s", err)
			t.FailNow()
		}
		p.caCert = buf.String()
	}
	if v, ok := t.(CleanupT); ok {
		v.Cleanup(p.Stop)
	}
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver,
// which can be used as an OIDC Issuer for discovery and is also used for the
// iss claim when issuing JWTs.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.  It's empty when the provider was started WithNoTLS.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a new http client that trusts the test provider.  It does
// not keep cookies, so every authorization request is a fresh consent.
func (p *TestProvider) HTTPClient() *http.Client {
	c := *p.httpServer.Client()
	return &c
}

// SigningKeys returns the test provider's keys used to sign JWTs, its Alg and
// its key ID.
func (p *TestProvider) SigningKeys() (crypto.PrivateKey, crypto.PublicKey, Alg, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signingKey, p.publicKey, ES256, p.keyID
}

// SetClientCreds is for configuring the relying party client ID and an
// optional secret.  An empty secret makes the client a public client.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// ClientCreds returns the relying party client ID and secret.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow.  Loopback URIs match on any port.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetTrustedOrigins configures the origins allowed to make direct API calls
// (revocation and direct logout).  When no origins have been set, every
// origin is trusted.
func (p *TestProvider) SetTrustedOrigins(origins ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trustedOrigins = make([]string, 0, len(origins))
	for _, o := range origins {
		p.trustedOrigins = append(p.trustedOrigins, strings.TrimSuffix(o, "/"))
	}
}

// SetDenyConsent makes the authorization endpoint redirect back with an
// access_denied error, as if the user declined consent.
func (p *TestProvider) SetDenyConsent(deny bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyConsent = deny
}

// SetSubject configures the subject (sub claim) of the issued tokens and
// userinfo response.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
	p.replyUserinfo["sub"] = sub
}

// SetUserInfoReply sets the UserInfo endpoint response.  The sub claim
// defaults to the configured subject when resp doesn't include one.
func (p *TestProvider) SetUserInfoReply(resp map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = map[string]interface{}{}
	for k, v := range resp {
		p.replyUserinfo[k] = v
	}
	if _, ok := p.replyUserinfo["sub"]; !ok {
		p.replyUserinfo["sub"] = p.replySubject
	}
}

// SetCustomClaims lets you set claims to return in the id_token issued by the
// OIDC workflow.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetExpectedExpiry sets the lifetime of issued tokens.
func (p *TestProvider) SetExpectedExpiry(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyExpiry = d
}

// SetNowFunc sets the time func used when issuing tokens.
func (p *TestProvider) SetNowFunc(n func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nowFunc = n
}

// OmitIDTokens forces an error state where the token endpoint does not
// return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from
// the discovery config.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// DisableRevocation omits the revocation_endpoint from the discovery config
// and makes the endpoint return 404.
func (p *TestProvider) DisableRevocation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableRevocation = true
}

// DisableEndSession omits the end_session_endpoint from the discovery config
// and makes the endpoint return 404.
func (p *TestProvider) DisableEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableEndSession = true
}

// IsRevoked returns true if the access token was issued by the provider and
// has since been revoked.
func (p *TestProvider) IsRevoked(accessToken string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessTokens[accessToken]
}

// SessionActive returns true if the subject has an active session with the
// provider.  A session starts with a successful token exchange and ends with
// a logout.
func (p *TestProvider) SessionActive(sub string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[sub]
}

func (p *TestProvider) now() time.Time {
	if p.nowFunc != nil {
		return p.nowFunc()
	}
	return time.Now()
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.t.(HelperT); ok {
		v.Helper()
	}
	p.logger.Trace("test provider request", "method", req.Method, "path", req.URL.Path)

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer               string   `json:"issuer"`
			AuthEndpoint         string   `json:"authorization_endpoint"`
			TokenEndpoint        string   `json:"token_endpoint"`
			JWKSURI              string   `json:"jwks_uri"`
			UserinfoEndpoint     string   `json:"userinfo_endpoint,omitempty"`
			RevocationEndpoint   string   `json:"revocation_endpoint,omitempty"`
			EndSessionEndpoint   string   `json:"end_session_endpoint,omitempty"`
			SupportedAlgs        []string `json:"id_token_signing_alg_values_supported"`
			ChallengeMethods     []string `json:"code_challenge_methods_supported"`
			ScopesSupported      []string `json:"scopes_supported"`
			ResponseTypes        []string `json:"response_types_supported"`
			SubjectTypes         []string `json:"subject_types_supported"`
			GrantTypes           []string `json:"grant_types_supported"`
			TokenEndpointAuthNMs []string `json:"token_endpoint_auth_methods_supported"`
		}{
			Issuer:               p.Addr(),
			AuthEndpoint:         p.Addr() + "/authorize",
			TokenEndpoint:        p.Addr() + "/token",
			JWKSURI:              p.Addr() + "/.well-known/jwks.json",
			UserinfoEndpoint:     p.Addr() + "/userinfo",
			RevocationEndpoint:   p.Addr() + "/revoke",
			EndSessionEndpoint:   p.Addr() + "/logout",
			SupportedAlgs:        []string{string(ES256)},
			ChallengeMethods:     []string{string(S256)},
			ScopesSupported:      []string{"openid", "email", "profile"},
			ResponseTypes:        []string{"code"},
			SubjectTypes:         []string{"public"},
			GrantTypes:           []string{"authorization_code"},
			TokenEndpointAuthNMs: []string{"none", "client_secret_basic", "client_secret_post"},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		if p.disableRevocation {
			reply.RevocationEndpoint = ""
		}
		if p.disableEndSession {
			reply.EndSessionEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/authorize":
		p.handleAuthorize(w, req)

	case "/token":
		p.handleToken(w, req)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet && req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if revoked, ok := p.accessTokens[token]; !ok || revoked {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_token", "access_token is not active")
			return
		}
		_ = p.writeJSON(w, p.replyUserinfo)

	case "/revoke":
		if p.disableRevocation {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !p.checkOrigin(w, req) {
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !p.authenticateClient(w, req) {
			return
		}
		token := req.FormValue("token")
		if token == "" {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing token")
			return
		}
		// an unknown token is not an error (RFC 7009 section 2.2)
		if _, ok := p.accessTokens[token]; ok {
			p.accessTokens[token] = true
		}
		w.WriteHeader(http.StatusOK)

	case "/logout":
		p.handleLogout(w, req)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qv := req.URL.Query()

	// errors before the redirect_uri is validated can't be sent to it
	if qv.Get("client_id") != p.clientID {
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_client", "unknown client_id")
		return
	}
	redirectURI := qv.Get("redirect_uri")
	if !p.redirectAllowed(redirectURI) {
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		return
	}

	state := qv.Get("state")
	switch {
	case qv.Get("response_type") != "code":
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	case !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
		p.writeAuthErrorResponse(w, req, "invalid_scope", "openid scope is required")
		return
	case state == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	case qv.Get("code_challenge") != "" && qv.Get("code_challenge_method") != string(S256):
		p.writeAuthErrorResponse(w, req, "invalid_request", "unsupported code_challenge_method")
		return
	case p.denyConsent:
		p.writeAuthErrorResponse(w, req, "access_denied", "the resource owner denied the request")
		return
	}

	code, err := NewID(WithPrefix("code"))
	if err != nil {
		p.writeAuthErrorResponse(w, req, "server_error", err.Error())
		return
	}
	p.codes[code] = &testAuthCode{
		nonce:         qv.Get("nonce"),
		redirectURI:   redirectURI,
		challenge:     qv.Get("code_challenge"),
		challengeType: qv.Get("code_challenge_method"),
		scopes:        strings.Fields(qv.Get("scope")),
		authTime:      p.now(),
	}

	redirect, err := url.Parse(redirectURI)
	if err != nil {
		p.writeAuthErrorResponse(w, req, "invalid_request", err.Error())
		return
	}
	rq := redirect.Query()
	rq.Set("state", state)
	rq.Set("code", code)
	redirect.RawQuery = rq.Encode()
	http.Redirect(w, req, redirect.String(), http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !p.authenticateClient(w, req) {
		return
	}

	code, ok := p.codes[req.FormValue("code")]
	switch {
	case req.FormValue("grant_type") != "authorization_code":
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		return
	case !ok:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	case req.FormValue("redirect_uri") != code.redirectURI:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match")
		return
	}
	// codes are single use
	delete(p.codes, req.FormValue("code"))

	if code.challenge != "" {
		verifier := req.FormValue("code_verifier")
		sum := sha256.Sum256([]byte(verifier))
		if verifier == "" || base64.RawURLEncoding.EncodeToString(sum[:]) != code.challenge {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match code_challenge")
			return
		}
	}

	now := p.now()
	accessToken := TestSignJWT(p.t, p.signingKey, ES256, map[string]interface{}{
		"iss": p.Addr(),
		"sub": p.replySubject,
		"aud": p.Addr(),
		"cid": p.clientID,
		"scp": code.scopes,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(p.replyExpiry)),
		"jti": req.FormValue("code"),
	}, p.keyID)
	p.accessTokens[accessToken] = false

	idClaims := map[string]interface{}{
		"iss":       p.Addr(),
		"sub":       p.replySubject,
		"aud":       []string{p.clientID},
		"iat":       jwt.NewNumericDate(now),
		"nbf":       jwt.NewNumericDate(now.Add(-5 * time.Second)),
		"exp":       jwt.NewNumericDate(now.Add(p.replyExpiry)),
		"auth_time": code.authTime.Unix(),
		"at_hash":   testHash(accessToken),
	}
	if code.nonce != "" {
		idClaims["nonce"] = code.nonce
	}
	if strutils.StrListContains(code.scopes, "email") {
		idClaims["email"] = p.replyUserinfo["email"]
	}
	if strutils.StrListContains(code.scopes, "profile") {
		idClaims["name"] = p.replyUserinfo["name"]
	}
	for k, v := range p.customClaims {
		idClaims[k] = v
	}
	reply := struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Scope       string `json:"scope"`
		IDToken     string `json:"id_token,omitempty"`
	}{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(p.replyExpiry.Seconds()),
		Scope:       strings.Join(code.scopes, " "),
	}
	if !p.omitIDToken {
		reply.IDToken = TestSignJWT(p.t, p.signingKey, ES256, idClaims, p.keyID)
	}
	p.sessions[p.replySubject] = true
	_ = p.writeJSON(w, &reply)
}

// handleLogout supports RP-initiated logout with a browser redirect (GET) and
// a direct API call (POST) which is subject to the trusted origins.
func (p *TestProvider) handleLogout(w http.ResponseWriter, req *http.Request) {
	if p.disableEndSession {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch req.Method {
	case http.MethodGet:
		qv := req.URL.Query()
		if hint := qv.Get("id_token_hint"); hint != "" {
			if sub, ok := p.subjectFromHint(hint); ok {
				delete(p.sessions, sub)
			}
		}
		if redirectURI := qv.Get("post_logout_redirect_uri"); redirectURI != "" {
			if !p.redirectAllowed(redirectURI) {
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "post_logout_redirect_uri is not allowed")
				return
			}
			if state := qv.Get("state"); state != "" {
				redirectURI += "?state=" + url.QueryEscape(state)
			}
			http.Redirect(w, req, redirectURI, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("signed out"))
	case http.MethodPost:
		if !p.checkOrigin(w, req) {
			return
		}
		hint := req.FormValue("id_token_hint")
		if hint == "" {
			// nothing to end, but the client still learns whether its
			// origin is trusted.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		sub, ok := p.subjectFromHint(hint)
		if !ok {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid id_token_hint")
			return
		}
		delete(p.sessions, sub)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// subjectFromHint verifies an id_token issued by this provider (expired
// tokens are fine) and returns its subject.
func (p *TestProvider) subjectFromHint(hint string) (string, bool) {
	parsed, err := jwt.ParseSigned(hint, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		return "", false
	}
	var claims jwt.Claims
	if err := parsed.Claims(p.publicKey, &claims); err != nil {
		return "", false
	}
	return claims.Subject, claims.Subject != ""
}

// checkOrigin emulates the provider's CORS allow-list.
func (p *TestProvider) checkOrigin(w http.ResponseWriter, req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p.trustedOrigins != nil && !strutils.StrListContains(p.trustedOrigins, origin) {
		p.logger.Debug("rejecting untrusted origin", "origin", origin, "path", req.URL.Path)
		_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "access_denied", fmt.Sprintf("origin %s is not trusted", origin))
		return false
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
	return true
}

// authenticateClient supports public clients (client_id form param) and
// confidential clients (basic auth or form params).
func (p *TestProvider) authenticateClient(w http.ResponseWriter, req *http.Request) bool {
	id, secret, ok := req.BasicAuth()
	if ok {
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	} else {
		id, secret = req.FormValue("client_id"), req.FormValue("client_secret")
	}
	if id != p.clientID || subtle.ConstantTimeCompare([]byte(secret), []byte(p.clientSecret)) != 1 {
		_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return false
	}
	return true
}

// redirectAllowed matches loopback redirect URIs on any port.
func (p *TestProvider) redirectAllowed(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || uri == "" {
		return false
	}
	if strutils.StrListContains(p.allowedRedirectURIs, uri) {
		return true
	}
	if !isLoopback(u) {
		return false
	}
	for _, a := range p.allowedRedirectURIs {
		allowed, err := url.Parse(a)
		if err != nil {
			continue
		}
		if u.Scheme == allowed.Scheme && u.Hostname() == allowed.Hostname() && u.Path == allowed.Path {
			return true
		}
	}
	return false
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)
	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// testHash is the at_hash of an ES256 signed id_token.
func testHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port if desired.  A zero port picks any available port.
func httptestNewUnstartedServerWithPort(t TestingT, handler http.Handler, port int) *httptest.Server {
	if v, ok := t.(HelperT); ok {
		v.Helper()
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		t.Errorf("unable to listen on %s: %s", addr, err)
		t.FailNow()
	}
	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}

// testProviderOptions is the set of available options for TestProvider
// functions
type testProviderOptions struct {
	withNoTLS  bool
	withPort   int
	withLogger hclog.Logger
}

// testProviderDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

// getTestProviderOpts gets the test provider defaults and applies the opt
// overrides passed in
func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNoTLS provides the option to not use TLS for the test provider.
//
// Valid for: TestProvider.StartTestProvider
func WithNoTLS() Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withNoTLS = true
		}
	}
}

// WithTestPort provides an optional port for the test provider.
//
// Valid for: TestProvider.StartTestProvider
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withPort = port
		}
	}
}
