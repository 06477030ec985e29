// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
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

// storeOptions is the set of available options for NewStore
type storeOptions struct {
	withPath   string
	withClock  clockwork.Clock
	withLogger hclog.Logger
}

func storeDefaults() storeOptions {
	return storeOptions{
		withClock:  clockwork.NewRealClock(),
		withLogger: hclog.NewNullLogger(),
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPath provides an optional file used to persist the session.  The file
// is loaded by NewStore and rewritten on every change.
func WithPath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withPath = path
		}
	}
}

// WithClock provides an optional clock used for expiration checks.
func WithClock(clock clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && clock != nil {
			o.withClock = clock
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
