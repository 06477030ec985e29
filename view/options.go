// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package view

import "github.com/hashicorp/go-hclog"

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

// pageOptions is the set of available options for NewPage
type pageOptions struct {
	withLogger hclog.Logger
	withTitle  string
}

func pageDefaults() pageOptions {
	return pageOptions{
		withLogger: hclog.NewNullLogger(),
		withTitle:  defaultPageTitle,
	}
}

func getPageOpts(opt ...Option) pageOptions {
	opts := pageDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for command errors.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*pageOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithTitle provides an optional page title.
func WithTitle(title string) Option {
	return func(o interface{}) {
		if o, ok := o.(*pageOptions); ok && title != "" {
			o.withTitle = title
		}
	}
}
