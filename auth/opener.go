// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"

	"github.com/skratchdot/open-golang/open"
)

// Opener presents a provider page (the consent "popup" or the logout page)
// to the user.  An error means the page could not be shown.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc is an adapter to allow the use of ordinary functions as an
// Opener.
type OpenerFunc func(ctx context.Context, url string) error

// Open calls f(ctx, url).
func (f OpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// BrowserOpener opens the url with the user's default browser.
var BrowserOpener Opener = OpenerFunc(func(_ context.Context, url string) error {
	return open.Run(url)
})
