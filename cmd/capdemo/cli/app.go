// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"time"

	"github.com/hashicorp/capdemo/auth"
	"github.com/hashicorp/capdemo/oidc"
	"github.com/hashicorp/capdemo/session"
	"github.com/hashicorp/go-hclog"
)

// newOpener returns the Opener used for sign in and sign out.
var newOpener = func() auth.Opener { return auth.BrowserOpener }

// app is the wired provider, store and controller of a command.
type app struct {
	logger     hclog.Logger
	provider   *oidc.Provider
	store      *session.Store
	controller *auth.Controller
	tp         *oidc.TestProvider
}

// newStore creates the session store.  The test provider's tokens are never
// persisted since they are only valid for the life of the process.
func (o *RootOptions) newStore(logger hclog.Logger) (*session.Store, error) {
	opts := []session.Option{session.WithLogger(logger)}
	if f := o.v.GetString(flagSessionFile); f != "" && !o.v.GetBool(flagUseTestProvider) {
		opts = append(opts, session.WithPath(f))
	}
	return session.NewStore(opts...)
}

// newApp wires the provider, store and controller.
func (o *RootOptions) newApp(logger hclog.Logger, opt ...auth.Option) (*app, error) {
	const op = "cli.newApp"
	a := &app{logger: logger}
	var err error
	if a.store, err = o.newStore(logger); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	issuer, clientID, secret := o.v.GetString(flagIssuer), o.v.GetString(flagClientID), o.v.GetString(flagClientSecret)
	caPEM, err := o.providerCA()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if o.v.GetBool(flagUseTestProvider) {
		if a.tp, err = startTestProvider(logger); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		issuer, caPEM = a.tp.Addr(), ""
		clientID, secret = a.tp.ClientCreds()
	}
	if issuer == "" || clientID == "" {
		a.Close()
		return nil, fmt.Errorf("%s: --%s and --%s are required (or --%s): %w", op, flagIssuer, flagClientID, flagUseTestProvider, oidc.ErrInvalidParameter)
	}

	cfgOpts := []oidc.Option{
		oidc.WithOrigin(o.origin()),
		oidc.WithLogger(logger),
		oidc.WithScopes(o.v.GetStringSlice(flagScopes)...),
	}
	if caPEM != "" {
		cfgOpts = append(cfgOpts, oidc.WithProviderCA(caPEM))
	}
	cfg, err := oidc.NewConfig(
		issuer,
		clientID,
		oidc.ClientSecret(secret),
		[]oidc.Alg{oidc.RS256, oidc.ES256, oidc.ES384, oidc.EdDSA},
		[]string{"http://127.0.0.1/callback", "http://localhost/callback"},
		cfgOpts...,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.provider, err = oidc.NewProvider(cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctrlOpts := append([]auth.Option{
		auth.WithLogger(logger),
		auth.WithOpener(newOpener()),
		auth.WithCallbackAddr(o.v.GetString(flagCallbackAddr)),
		auth.WithAttemptExpiry(o.attemptExpiry()),
		auth.WithPostLogoutRedirectURL(o.v.GetString(flagPostLogoutRedirectURL)),
	}, opt...)
	if a.controller, err = auth.NewController(a.provider, a.store, ctrlOpts...); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Close releases the provider and stops the test provider.
func (a *app) Close() {
	if a.provider != nil {
		a.provider.Done()
	}
	if a.tp != nil {
		a.tp.Stop()
	}
}

// startTestProvider starts an in process provider which signs in
// "alice@example.com" without asking.
func startTestProvider(logger hclog.Logger) (*oidc.TestProvider, error) {
	l, err := oidc.NewTestingLogger(logger.Named("test-provider"))
	if err != nil {
		return nil, err
	}
	tp := oidc.StartTestProvider(l, oidc.WithNoTLS(), oidc.WithLogger(logger.Named("test-provider")))
	tp.SetExpectedExpiry(time.Hour)
	tp.SetCustomClaims(map[string]interface{}{"name": "Alice Smith"})
	return tp, nil
}
