// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

const (
	// DefaultAttemptExpiry is how long a sign in waits for the provider's
	// response.
	DefaultAttemptExpiry = 2 * time.Minute

	// DefaultCallbackAddr is a loopback address with a port chosen by the
	// system.
	DefaultCallbackAddr = "127.0.0.1:0"

	// CallbackPath is the path of the loopback redirect URL.
	CallbackPath = "/callback"
)

// DefaultScopes are requested by SignIn when no scopes are given.
var DefaultScopes = []string{"openid", "email", "profile"}

// controllerOptions is the set of available options for NewController
type controllerOptions struct {
	withLogger                hclog.Logger
	withOpener                Opener
	withCallbackAddr          string
	withAttemptExpiry         time.Duration
	withReloadFunc            func()
	withPostLogoutRedirectURL string
}

func controllerDefaults() controllerOptions {
	return controllerOptions{
		withLogger:        hclog.NewNullLogger(),
		withOpener:        BrowserOpener,
		withCallbackAddr:  DefaultCallbackAddr,
		withAttemptExpiry: DefaultAttemptExpiry,
		withReloadFunc:    func() {},
	}
}

func getControllerOpts(opt ...Option) controllerOptions {
	opts := controllerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithOpener provides an optional Opener used to present the provider's
// pages to the user.  The default is BrowserOpener.
func WithOpener(op Opener) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && op != nil {
			o.withOpener = op
		}
	}
}

// WithCallbackAddr provides an optional host:port for the sign in callback
// listener.  The host must be a loopback address.
func WithCallbackAddr(addr string) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withCallbackAddr = addr
		}
	}
}

// WithAttemptExpiry provides an optional duration a sign in waits for the
// provider's response.
func WithAttemptExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withAttemptExpiry = d
		}
	}
}

// WithReloadFunc provides an optional func that SignOutWithoutRedirect calls
// once the session is cleared, so views can discard stale state.
func WithReloadFunc(fn func()) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && fn != nil {
			o.withReloadFunc = fn
		}
	}
}

// WithPostLogoutRedirectURL provides an optional URL the provider redirects
// to after a SignOut.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}
