// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides callbacks (in the form of http.HandlerFunc)
for handling OIDC provider responses to authorization code flow (with optional
PKCE) authentication attempts.  A loopback listener serving AuthCode is the
landing page of an interactive (popup) sign in.
*/
package callback
