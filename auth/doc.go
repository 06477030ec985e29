// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package auth provides the Controller which drives the interactive OIDC
authorization code flow with PKCE and keeps a session.Store up to date.

Sign in opens the provider's consent page with an Opener (by default the
user's browser) and receives the authorization response on a one-shot
loopback listener.  Sign out, revocation and the direct (no redirect) sign
out are calls to the provider which carry the configured origin, so a
provider that doesn't trust the origin fails them with a CrossOrigin
AuthError.

Only one sign in can be in flight at a time; a second concurrent SignIn
fails with a Busy AuthError which wraps ErrSignInInProgress.

Example:

	ctx := context.Background()
	c, _ := auth.NewController(p, store, auth.WithLogger(logger))
	sess, err := c.SignIn(ctx, "openid", "email", "profile")
	var authErr *auth.AuthError
	if errors.As(err, &authErr) && authErr.Reason == auth.UserCancelled {
		// the popup was closed or the attempt timed out
	}
	fmt.Println(sess.IDToken)
*/
package auth
