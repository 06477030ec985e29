// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capdemo signs in to an OIDC provider with the authorization code flow and
// PKCE and displays the session's identity and access tokens.
//
// The packages are:
//   - oidc: provider configuration, discovery, requests, token exchange and
//     verification, revocation and logout, plus an in process TestProvider
//   - oidc/callback: the authorization code redirect handler
//   - session: the session Store of id and access tokens
//   - auth: the Controller which signs in, signs out and revokes
//   - view: the token displays and the session page
//
// See cmd/capdemo for the CLI.
package capdemo
