// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/capdemo/oidc"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNilParameter        = errors.New("nil parameter")
	ErrSignInInProgress    = errors.New("sign in already in progress")
	ErrAttemptExpired      = errors.New("sign in attempt expired")
	ErrAuthorizationDenied = errors.New("authorization denied by provider")
	ErrNotAuthenticated    = errors.New("not authenticated")
)

// Reason classifies an AuthError.
type Reason string

const (
	// UserCancelled: the popup was closed or blocked, the context was
	// cancelled or the sign in attempt expired.
	UserCancelled Reason = "user cancelled"

	// ProviderDenied: the provider returned an authorization error, for
	// example access_denied when consent is rejected.
	ProviderDenied Reason = "provider denied"

	// CrossOrigin: the provider rejected the call because it doesn't trust
	// the configured origin.
	CrossOrigin Reason = "cross origin"

	// Network: discovery, exchange, transport and other provider failures.
	Network Reason = "network"

	// Busy: another sign in is in flight.
	Busy Reason = "busy"
)

// AuthError is returned by the Controller's interactive and network
// operations.  None of them are retried.
type AuthError struct {
	Op     string
	Reason Reason
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Reason, e.Err)
}

// Unwrap returns the cause.
func (e *AuthError) Unwrap() error { return e.Err }

// ReasonOf returns the Reason of an AuthError found in err's chain.
func ReasonOf(err error) (Reason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}

// newAuthError classifies err by its cause.
func newAuthError(op string, err error) *AuthError {
	var r Reason
	switch {
	case errors.Is(err, oidc.ErrCrossOrigin):
		r = CrossOrigin
	case errors.Is(err, ErrAuthorizationDenied):
		r = ProviderDenied
	case errors.Is(err, ErrSignInInProgress):
		r = Busy
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrAttemptExpired):
		r = UserCancelled
	default:
		r = Network
	}
	return &AuthError{Op: op, Reason: r, Err: err}
}
