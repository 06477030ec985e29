// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package view renders the session: two read-only token displays and a page
// with the sign in, sign out, clear, revoke and sign out without redirect
// commands.
package view

import (
	"github.com/hashicorp/capdemo/session"
)

// Placeholder is displayed for an absent token.
const Placeholder = "none"

// Displays are the current token values, or Placeholder when absent.
type Displays struct {
	IDToken     string
	AccessToken string
}

// Current reads the store's displays.
func Current(s *session.Store) Displays {
	sess := s.Session()
	return Displays{
		IDToken:     display(sess.IDToken),
		AccessToken: display(sess.AccessToken),
	}
}

func display(t *session.Token) string {
	if t == nil || t.Value == "" {
		return Placeholder
	}
	return t.Value
}
