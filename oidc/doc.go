// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package oidc provides a relying party client for the OpenID Connect
// Authorization Code Flow with PKCE. Beyond the authentication request and
// code exchange it supports the token lifecycle operations a public client
// needs: UserInfo, token revocation (RFC 7009), RP-initiated logout and a
// direct (no redirect) provider session close.
//
// A TestProvider is included which makes writing tests against a real (in
// process) OIDC provider easy.
package oidc
