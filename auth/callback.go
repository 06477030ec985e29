// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/capdemo/oidc"
	"github.com/hashicorp/capdemo/oidc/callback"
)

type signInResult struct {
	token oidc.Token
	err   error
}

const successHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Signed in</title></head>
<body>
<h1>Signed in</h1>
<p>You can close this window and return to the application.</p>
</body>
</html>
`

const failedHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in failed</title></head>
<body>
<h1>Sign in failed</h1>
<p>You can close this window and return to the application.</p>
</body>
</html>
`

// sendResult keeps the first result, later callbacks are dropped.
func sendResult(ch chan<- signInResult, r signInResult) {
	select {
	case ch <- r:
	default:
	}
}

func (c *Controller) success(ch chan<- signInResult) callback.SuccessResponseFunc {
	return func(state string, t oidc.Token, w http.ResponseWriter, req *http.Request) {
		defer sendResult(ch, signInResult{token: t})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(successHTML)); err != nil {
			c.logger.Warn("unable to write sign in response", "error", err)
		}
	}
}

func (c *Controller) failed(ch chan<- signInResult) callback.ErrorResponseFunc {
	return func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		var err error
		status := http.StatusInternalServerError
		switch {
		case r != nil:
			err = fmt.Errorf("%s: %w", r, ErrAuthorizationDenied)
			status = http.StatusUnauthorized
		case e != nil:
			err = e
		default:
			err = errors.New("unknown error from callback")
		}
		defer sendResult(ch, signInResult{err: err})
		c.logger.Debug("sign in callback failed", "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(failedHTML)); err != nil {
			c.logger.Warn("unable to write sign in response", "error", err)
		}
	}
}
