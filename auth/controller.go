// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/capdemo/oidc"
	"github.com/hashicorp/capdemo/oidc/callback"
	"github.com/hashicorp/capdemo/session"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// State of the session as seen by the Controller.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Controller orchestrates sign in, sign out and revocation with an
// oidc.Provider and is the only writer of its session.Store.
type Controller struct {
	provider *oidc.Provider
	store    *session.Store
	logger   hclog.Logger

	opener                Opener
	callbackAddr          string
	attemptExpiry         time.Duration
	reload                func()
	postLogoutRedirectURL string

	signingIn atomic.Bool
}

// NewController creates a Controller for the provider and store.
//
// Supported options: WithLogger, WithOpener, WithCallbackAddr,
// WithAttemptExpiry, WithReloadFunc, WithPostLogoutRedirectURL
func NewController(p *oidc.Provider, s *session.Store, opt ...Option) (*Controller, error) {
	const op = "auth.NewController"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrNilParameter)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	opts := getControllerOpts(opt...)
	if opts.withAttemptExpiry <= 0 {
		return nil, fmt.Errorf("%s: attempt expiry must be greater than zero: %w", op, ErrInvalidParameter)
	}
	host, _, err := net.SplitHostPort(opts.withCallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("%s: callback address %q: %s: %w", op, opts.withCallbackAddr, err, ErrInvalidParameter)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, fmt.Errorf("%s: callback address %q is not a loopback address: %w", op, opts.withCallbackAddr, ErrInvalidParameter)
	}
	return &Controller{
		provider:              p,
		store:                 s,
		logger:                opts.withLogger.Named("auth"),
		opener:                opts.withOpener,
		callbackAddr:          opts.withCallbackAddr,
		attemptExpiry:         opts.withAttemptExpiry,
		reload:                opts.withReloadFunc,
		postLogoutRedirectURL: opts.withPostLogoutRedirectURL,
	}, nil
}

// State returns Authenticated when the store holds an access token which
// hasn't expired.
func (c *Controller) State() State {
	if _, ok := c.store.Get(session.AccessToken); ok && !c.store.Expired(session.AccessToken) {
		return Authenticated
	}
	return Unauthenticated
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() session.Session {
	return c.store.Session()
}

// SignIn runs the authorization code flow with PKCE.  The "openid" scope is
// always requested and DefaultScopes are used when none are given.
//
// The provider's consent page is opened with the Opener and SignIn waits
// for the first of: the provider's response, ctx being done or the attempt
// expiring.  On success the id and access tokens are written to the store
// and replace the session, which is returned.  On failure the store is
// unchanged and the error is an *AuthError.
func (c *Controller) SignIn(ctx context.Context, scopes ...string) (*session.Session, error) {
	const op = "Controller.SignIn"
	if !c.signingIn.CompareAndSwap(false, true) {
		return nil, &AuthError{Op: op, Reason: Busy, Err: ErrSignInInProgress}
	}
	defer c.signingIn.Store(false)

	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	ctx, cancel := context.WithTimeout(ctx, c.attemptExpiry)
	defer cancel()

	listener, err := net.Listen("tcp", c.callbackAddr)
	if err != nil {
		return nil, newAuthError(op, fmt.Errorf("unable to start callback listener: %w", err))
	}
	defer listener.Close()
	redirectURL := fmt.Sprintf("http://%s%s", listener.Addr().String(), CallbackPath)

	verifier, err := oidc.NewCodeVerifier()
	if err != nil {
		return nil, newAuthError(op, err)
	}
	// the request outlives the attempt by its expiry skew, so ctx decides
	// when the attempt is over.
	oidcRequest, err := oidc.NewRequest(c.attemptExpiry+oidc.RequestExpirySkew, redirectURL, oidc.WithPKCE(verifier), oidc.WithScopes(scopes...))
	if err != nil {
		return nil, newAuthError(op, err)
	}
	authURL, err := c.provider.AuthURL(ctx, oidcRequest)
	if err != nil {
		return nil, newAuthError(op, err)
	}

	resultCh := make(chan signInResult, 1)
	handler, err := callback.AuthCode(ctx, c.provider, &callback.SingleRequestReader{Request: oidcRequest}, c.success(resultCh), c.failed(resultCh))
	if err != nil {
		return nil, newAuthError(op, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	srvCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Debug("opening consent page", "redirect_url", redirectURL, "scopes", oidcRequest.Scopes())
	if err := c.opener.Open(ctx, authURL); err != nil {
		return nil, &AuthError{Op: op, Reason: UserCancelled, Err: fmt.Errorf("unable to open consent page: %w", err)}
	}

	var result signInResult
	select {
	case result = <-resultCh:
	case err := <-srvCh:
		return nil, newAuthError(op, fmt.Errorf("callback listener failed: %w", err))
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w", err, ErrAttemptExpired)
		}
		return nil, &AuthError{Op: op, Reason: UserCancelled, Err: err}
	}
	if result.err != nil {
		return nil, newAuthError(op, result.err)
	}

	tokens, err := c.sessionTokens(result.token)
	if err != nil {
		return nil, newAuthError(op, err)
	}
	// a sign in replaces the whole session, so no token of a previous
	// session survives it.
	if err := c.store.Replace(tokens); err != nil {
		return nil, newAuthError(op, err)
	}
	sess := c.store.Session()
	c.logger.Debug("signed in", "id_token", sess.IDToken, "access_token", sess.AccessToken)
	return &sess, nil
}

// SignOut revokes the access token, opens the provider's logout page when
// it supports RP-initiated logout and then clears the store.  A revocation
// failure is returned as an *AuthError and leaves the store unchanged.
// SignOut without a session makes no calls and returns nil.
func (c *Controller) SignOut(ctx context.Context) error {
	const op = "Controller.SignOut"
	sess := c.store.Session()
	if sess.Empty() {
		c.logger.Debug("sign out without a session")
		return nil
	}
	if err := c.revoke(ctx, sess); err != nil {
		return newAuthError(op, err)
	}
	if sess.IDToken != nil && c.provider.EndSessionSupported() {
		state, err := oidc.NewID(oidc.WithPrefix("lo"))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		logoutURL, err := c.provider.EndSessionURL(oidc.IDToken(sess.IDToken.Value), c.postLogoutRedirectURL, state)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := c.opener.Open(ctx, logoutURL); err != nil {
			c.logger.Warn("unable to open logout page", "error", err)
		}
	}
	c.store.Clear()
	c.logger.Debug("signed out")
	return nil
}

// SignOutWithoutRedirect revokes the access token, closes the provider
// session with a direct call, clears the store and calls the reload func.
// The close call is made even without a session, so an untrusted origin
// always fails with CrossOrigin.  Any provider failure is returned as an
// *AuthError; a revoked access token is removed from the store even when the
// close call then fails.
func (c *Controller) SignOutWithoutRedirect(ctx context.Context) error {
	const op = "Controller.SignOutWithoutRedirect"
	sess := c.store.Session()
	if err := c.revoke(ctx, sess); err != nil {
		return newAuthError(op, err)
	}
	if c.provider.EndSessionSupported() {
		var hint oidc.IDToken
		if sess.IDToken != nil {
			hint = oidc.IDToken(sess.IDToken.Value)
		}
		if err := c.provider.CloseSession(ctx, hint); err != nil {
			return newAuthError(op, err)
		}
	}
	c.store.Clear()
	c.reload()
	c.logger.Debug("signed out without redirect")
	return nil
}

// Revoke revokes the stored access token and then clears the store.  It
// returns nil when there is no access token.
func (c *Controller) Revoke(ctx context.Context) error {
	const op = "Controller.Revoke"
	at, ok := c.store.Get(session.AccessToken)
	if !ok {
		return nil
	}
	if err := c.provider.RevokeToken(ctx, at.Value, oidc.AccessTokenHint); err != nil {
		return newAuthError(op, err)
	}
	c.store.Clear()
	c.logger.Debug("revoked access token")
	return nil
}

// ClearLocal clears the store without contacting the provider.
func (c *Controller) ClearLocal() {
	c.store.Clear()
}

// UserInfo gets the provider's UserInfo claims with the stored access token.
func (c *Controller) UserInfo(ctx context.Context, claims interface{}) error {
	const op = "Controller.UserInfo"
	sess := c.store.Session()
	if sess.AccessToken == nil || sess.IDToken == nil {
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	sub, _ := sess.IDToken.Claims["sub"].(string)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sess.AccessToken.Value})
	if err := c.provider.UserInfo(ctx, ts, sub, claims); err != nil {
		return newAuthError(op, err)
	}
	return nil
}

// revoke the session's access token, when the provider supports it.  Once
// revoked the access token is deleted from the store.
func (c *Controller) revoke(ctx context.Context, sess session.Session) error {
	if sess.AccessToken == nil {
		return nil
	}
	if !c.provider.RevocationSupported() {
		c.logger.Debug("provider doesn't support revocation")
		return nil
	}
	if err := c.provider.RevokeToken(ctx, sess.AccessToken.Value, oidc.AccessTokenHint); err != nil {
		return err
	}
	c.store.Delete(session.AccessToken)
	return nil
}

func (c *Controller) sessionTokens(t oidc.Token) (map[session.TokenType]*session.Token, error) {
	const op = "Controller.sessionTokens"
	var claims map[string]interface{}
	if err := t.IDToken().Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tokens := map[session.TokenType]*session.Token{
		session.IDToken: {
			Value:     string(t.IDToken()),
			ExpiresAt: claimTime(claims, "exp"),
			Claims:    claims,
		},
	}
	if at := t.AccessToken(); at != "" {
		tokens[session.AccessToken] = &session.Token{
			Value:     string(at),
			ExpiresAt: t.Expiry(),
		}
	}
	return tokens, nil
}

func claimTime(claims map[string]interface{}, name string) time.Time {
	if v, ok := claims[name].(float64); ok {
		return time.Unix(int64(v), 0)
	}
	return time.Time{}
}
