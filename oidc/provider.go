// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/capdemo/oidc/internal/strutils"
	sdkHttp "github.com/hashicorp/capdemo/sdk/http"
	"golang.org/x/oauth2"
)

// TokenTypeHint is the optional hint sent with a revocation request (see:
// https://tools.ietf.org/html/rfc7009#section-2.1)
type TokenTypeHint string

// AccessTokenHint is the only token type this client revokes.
const AccessTokenHint TokenTypeHint = "access_token"

// Provider provides integration with an OIDC provider.
//
// It's primary capabilities include:
//   - Kicking off a user authentication via either the authorization code flow
//     (with optional PKCE) and returning an auth URL.
//   - The authorization code flow exchange of an auth code for tokens.
//   - Verifying an id_token issued by a provider with its public keys.
//   - Retrieving a user's OAuth claims from the provider's UserInfo endpoint.
//   - Revoking tokens and ending the user's session with the provider.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client
	metadata providerMetadata

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs Key sets, refreshing tokens, etc
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// providerMetadata are the discovery document fields go-oidc doesn't expose.
type providerMetadata struct {
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	EndSessionEndpoint            string   `json:"end_session_endpoint"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// NewProvider creates and initializes a Provider.  Intializing the provider,
// includes making an http request to the provider's issuer.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	if err := provider.Claims(&p.metadata); err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to decode provider metadata: %w", op, err)
	}
	if len(p.metadata.CodeChallengeMethodsSupported) > 0 &&
		!strutils.StrListContains(p.metadata.CodeChallengeMethodsSupported, string(S256)) {
		c.logger().Warn("provider does not advertise the S256 code challenge method", "issuer", c.Issuer)
	}
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	// checking for nil here prevents a panic when developers neglect to check
	// the for an error before deferring a call to p.Done():
	// p, err := NewProvider(...)
	// defer p.Done()
	// if err != nil { ... }
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns a copy of the Provider's configuration.
func (p *Provider) Config() *Config {
	c := *p.config
	return &c
}

// RevocationSupported reports whether the provider advertises a
// revocation_endpoint.
func (p *Provider) RevocationSupported() bool { return p.metadata.RevocationEndpoint != "" }

// EndSessionSupported reports whether the provider advertises an
// end_session_endpoint.
func (p *Provider) EndSessionSupported() bool { return p.metadata.EndSessionEndpoint != "" }

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with an IdP.
//
// See NewRequest() to create an oidc Request with a valid state and Nonce that
// will uniquely identify the user's authentication attempt throughout the flow.
func (p *Provider) AuthURL(ctx context.Context, oidcRequest Request) (string, error) {
	const op = "Provider.AuthURL"
	if oidcRequest == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if oidcRequest.State() == oidcRequest.Nonce() {
		return "", fmt.Errorf("%s: request id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if oidcRequest.IsExpired() {
		return "", fmt.Errorf("%s: request is expired: %w", op, ErrExpiredRequest)
	}
	if err := p.validRedirect(oidcRequest.RedirectURL()); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(oidcRequest.Nonce()),
	}
	if v := oidcRequest.PKCEVerifier(); v != nil {
		authCodeOpts = append(authCodeOpts,
			oauth2.SetAuthURLParam("code_challenge", v.Challenge()),
			oauth2.SetAuthURLParam("code_challenge_method", string(v.Method())),
		)
	}
	if secs, authAfter := oidcRequest.MaxAge(); !authAfter.IsZero() {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("max_age", strconv.Itoa(int(secs))))
	}
	if prompts := oidcRequest.Prompts(); len(prompts) > 0 {
		prompts = removeDuplicatePrompts(prompts)
		if len(prompts) > 1 && containsPrompt(prompts, None) {
			return "", fmt.Errorf("%s: prompts (%v) includes \"none\" with other values: %w", op, prompts, ErrInvalidParameter)
		}
		values := make([]string, 0, len(prompts))
		for _, v := range prompts {
			values = append(values, string(v))
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("prompt", strings.Join(values, " ")))
	}
	if locales := oidcRequest.UILocales(); len(locales) > 0 {
		l := make([]string, 0, len(locales))
		for _, v := range locales {
			l = append(l, v.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(l, " ")))
	}
	return p.oauth2Config(oidcRequest).AuthCodeURL(oidcRequest.State(), authCodeOpts...), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode and authorizationState it received in an earlier successful
// oidc authentication response.
//
// Exchange will use PKCE when the user's oidc Request specifies its use.
//
// It will also validate the authorizationState it receives against the
// existing Request for the user's oidc authentication flow.
//
// On success, the Token returned will include an IDToken and may include an
// AccessToken.
func (p *Provider) Exchange(ctx context.Context, oidcRequest Request, authorizationState string, authorizationCode string) (*Tk, error) {
	const op = "Provider.Exchange"
	if p.config == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if oidcRequest == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if oidcRequest.State() != authorizationState {
		return nil, fmt.Errorf("%s: authentication request state and authorization state are not equal: %w", op, ErrInvalidResponseState)
	}
	if oidcRequest.IsExpired() {
		return nil, fmt.Errorf("%s: authentication request is expired: %w", op, ErrExpiredRequest)
	}
	if err := p.validRedirect(oidcRequest.RedirectURL()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	oidcCtx := HTTPClientContext(ctx, p.client)
	var exchangeOpts []oauth2.AuthCodeOption
	if v := oidcRequest.PKCEVerifier(); v != nil {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(v.Verifier()))
	}
	oauth2Token, err := p.oauth2Config(oidcRequest).Exchange(oidcCtx, authorizationCode, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, p.convertError(err, ErrExchangeFailed))
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token, WithNow(p.config.NowFunc))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new id_token: %w", op, err)
	}
	verified, err := p.verifyIDToken(ctx, t.IDToken(), oidcRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	if t.AccessToken() != "" && verified.AccessTokenHash != "" {
		if err := verified.VerifyAccessToken(string(t.AccessToken())); err != nil {
			return nil, fmt.Errorf("%s: access_token hash does not match value in id_token: %w", op, ErrIDTokenVerificationFailed)
		}
	}
	return t, nil
}

// UserInfo gets the UserInfo claims from the provider using the token produced
// by the tokenSource. Only JSON user info responses are supported (signed JWT
// responses are not).  The WithAudiences option is not supported.
//
// The validSubject must match the subject of the UserInfo response.
func (p *Provider) UserInfo(ctx context.Context, tokenSource oauth2.TokenSource, validSubject string, claims interface{}) error {
	const op = "Provider.UserInfo"
	if tokenSource == nil {
		return fmt.Errorf("%s: token source is nil: %w", op, ErrNilParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	if validSubject == "" {
		return fmt.Errorf("%s: valid subject is empty: %w", op, ErrInvalidParameter)
	}
	oidcCtx := HTTPClientContext(ctx, p.client)

	userinfo, err := p.provider.UserInfo(oidcCtx, tokenSource)
	if err != nil {
		return fmt.Errorf("%s: provider UserInfo request failed: %w", op, p.convertError(err, ErrUserInfoFailed))
	}
	if userinfo.Subject != validSubject {
		return fmt.Errorf("%s: UserInfo subject %q does not match %q: %w", op, userinfo.Subject, validSubject, ErrUserInfoFailed)
	}
	if err := userinfo.Claims(claims); err != nil {
		return fmt.Errorf("%s: failed to get UserInfo claims: %w", op, err)
	}
	return nil
}

// VerifyIDToken will verify the inbound IDToken and return its claims.
//
// It verifies:
//   - signing algorithm is in the configured SupportedSigningAlgs
//   - signature is valid
//   - the iss claim matches the Issuer and the aud claim contains the ClientID
//   - the aud claim includes one of the request (or configured) audiences
//   - nonce matches the request's nonce
//   - exp, nbf, iat and auth_time (when the request has a max age)
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, oidcRequest Request) (map[string]interface{}, error) {
	const op = "Provider.VerifyIDToken"
	verified, err := p.verifyIDToken(ctx, t, oidcRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to get claims from id_token: %w", op, err)
	}
	return claims, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, t IDToken, oidcRequest Request) (*oidc.IDToken, error) {
	const op = "Provider.verifyIDToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if oidcRequest == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if oidcRequest.Nonce() == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  p.config.Now,
	})
	oidcIDToken, err := verifier.Verify(HTTPClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, err, ErrIDTokenVerificationFailed)
	}
	if oidcIDToken.Nonce != oidcRequest.Nonce() {
		return nil, fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}

	audiences := oidcRequest.Audiences()
	if len(audiences) == 0 {
		audiences = p.config.Audiences
	}
	if len(audiences) > 0 {
		found := false
		for _, v := range audiences {
			if strutils.StrListContains(oidcIDToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}

	if secs, authAfter := oidcRequest.MaxAge(); !authAfter.IsZero() {
		var authClaims struct {
			AuthTime int64 `json:"auth_time"`
		}
		if err := oidcIDToken.Claims(&authClaims); err != nil {
			return nil, fmt.Errorf("%s: unable to get auth_time claim: %w", op, err)
		}
		if authClaims.AuthTime == 0 {
			return nil, fmt.Errorf("%s: missing auth_time claim when max age was requested: %w", op, ErrIDTokenVerificationFailed)
		}
		authTime := time.Unix(authClaims.AuthTime, 0)
		leeway := time.Minute
		if !authTime.Add(leeway).After(authAfter) {
			return nil, fmt.Errorf("%s: auth_time (%s) is beyond max age (%d): %w", op, authTime, secs, ErrIDTokenVerificationFailed)
		}
	}
	return oidcIDToken, nil
}

// RevokeToken revokes the token with the provider's revocation_endpoint (see:
// https://tools.ietf.org/html/rfc7009).  The request carries the configured
// Origin and is rejected with ErrCrossOrigin when the provider doesn't trust
// it.
func (p *Provider) RevokeToken(ctx context.Context, token string, hint TokenTypeHint) error {
	const op = "Provider.RevokeToken"
	if token == "" {
		return fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	if !p.RevocationSupported() {
		return fmt.Errorf("%s: %w", op, ErrRevocationNotSupported)
	}
	form := url.Values{"token": {token}}
	if hint != "" {
		form.Set("token_type_hint", string(hint))
	}
	if err := p.directCall(ctx, p.metadata.RevocationEndpoint, form); err != nil {
		return fmt.Errorf("%s: %w", op, p.convertError(err, ErrRevocationFailed))
	}
	return nil
}

// EndSessionURL returns the provider's RP-initiated logout URL (see:
// https://openid.net/specs/openid-connect-rpinitiated-1_0.html).  The
// idTokenHint, postLogoutRedirectURL and state are optional.
func (p *Provider) EndSessionURL(idTokenHint IDToken, postLogoutRedirectURL, state string) (string, error) {
	const op = "Provider.EndSessionURL"
	if !p.EndSessionSupported() {
		return "", fmt.Errorf("%s: %w", op, ErrEndSessionNotSupported)
	}
	u, err := url.Parse(p.metadata.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end_session_endpoint %q is invalid: %w", op, p.metadata.EndSessionEndpoint, ErrEndSessionNotSupported)
	}
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", string(idTokenHint))
	}
	if postLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURL)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CloseSession ends the user's session with the provider by a direct call to
// the end_session_endpoint, without a browser redirect.  Like RevokeToken, the
// call carries the configured Origin and is rejected with ErrCrossOrigin when
// the provider doesn't trust it.  The idTokenHint is optional; without it the
// call only identifies the client.
func (p *Provider) CloseSession(ctx context.Context, idTokenHint IDToken) error {
	const op = "Provider.CloseSession"
	if !p.EndSessionSupported() {
		return fmt.Errorf("%s: %w", op, ErrEndSessionNotSupported)
	}
	form := url.Values{}
	if idTokenHint != "" {
		form.Set("id_token_hint", string(idTokenHint))
	}
	if err := p.directCall(ctx, p.metadata.EndSessionEndpoint, form); err != nil {
		return fmt.Errorf("%s: %w", op, p.convertError(err, ErrCloseSessionFailed))
	}
	return nil
}

// directCall POSTs the form to the endpoint with the client's credentials and
// origin.  Redirects are not followed.
func (p *Provider) directCall(ctx context.Context, endpoint string, form url.Values) error {
	const op = "Provider.directCall"
	if p.config.ClientSecret == "" {
		form.Set("client_id", p.config.ClientID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(string(p.config.ClientSecret)))
	}
	sdkHttp.SetOrigin(req, p.config.Origin)

	client := *p.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if err := sdkHttp.CheckOrigin(resp, p.config.Origin); err != nil {
		return fmt.Errorf("%s: %s: %w", op, err, ErrCrossOrigin)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// convertError classifies errors returned by the provider.  Origin and
// transport errors are returned unchanged so callers can tell them apart,
// everything else is a protocol failure.
func (p *Provider) convertError(err error, failure error) error {
	var urlErr *url.Error
	if errors.Is(err, ErrCrossOrigin) || errors.As(err, &urlErr) {
		return err
	}
	return fmt.Errorf("%s: %w", err, failure)
}

func (p *Provider) oauth2Config(oidcRequest Request) *oauth2.Config {
	scopes := oidcRequest.Scopes()
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}
	// Add the "openid" scope, which is a required scope for oidc flows
	scopes = strutils.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, scopes...), false)

	endpoint := p.provider.Endpoint()
	if p.config.ClientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  oidcRequest.RedirectURL(),
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// validRedirect checks whether uri is in allowed using special handling for
// loopback uris.  Ref: https://tools.ietf.org/html/rfc8252#section-7.3
func (p *Provider) validRedirect(uri string) error {
	const op = "Provider.validRedirect"
	if len(p.config.AllowedRedirectURLs) == 0 {
		return nil
	}

	inputURI, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%s: redirect URI %s is an invalid URI %s: %w", op, uri, err.Error(), ErrInvalidParameter)
	}

	// if uri isn't a loopback, just string search the allowed list
	if !isLoopback(inputURI) {
		if !strutils.StrListContains(p.config.AllowedRedirectURLs, uri) {
			return fmt.Errorf("%s: redirect URI %s: %w", op, uri, ErrUnauthorizedRedirectURI)
		}
		return nil
	}

	// otherwise, search for a match in a port-agnostic manner, per the OAuth RFC.
	for _, a := range p.config.AllowedRedirectURLs {
		allowedURI, err := url.Parse(a)
		if err != nil {
			return fmt.Errorf("%s: allowed redirect URI %s is an invalid URI %s: %w", op, allowedURI, err.Error(), ErrInvalidParameter)
		}
		if inputURI.Scheme == allowedURI.Scheme &&
			inputURI.Hostname() == allowedURI.Hostname() &&
			inputURI.Path == allowedURI.Path {
			return nil
		}
	}
	return fmt.Errorf("%s: redirect URI %s: %w", op, uri, ErrUnauthorizedRedirectURI)
}

func isLoopback(u *url.URL) bool {
	return strutils.StrListContains([]string{"localhost", "127.0.0.1", "::1"}, u.Hostname())
}

func containsPrompt(prompts []Prompt, p Prompt) bool {
	for _, v := range prompts {
		if v == p {
			return true
		}
	}
	return false
}

func removeDuplicatePrompts(prompts []Prompt) []Prompt {
	out := make([]Prompt, 0, len(prompts))
	for _, v := range prompts {
		if !containsPrompt(out, v) {
			out = append(out, v)
		}
	}
	return out
}
