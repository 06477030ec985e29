// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package http provides the http client used to talk to identity providers.
package http

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
	ErrOriginNotAllowed      = errors.New("origin not allowed")
)

// NewClient creates a new http client which will use the optional CA
// certificate PEM if provided, otherwise it will use the installed system CA
// chain.
func NewClient(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// SetOrigin sets the Origin header of a direct API request.  An empty origin
// is a no-op.
func SetOrigin(req *http.Request, origin string) {
	if origin == "" {
		return
	}
	req.Header.Set("Origin", strings.TrimSuffix(origin, "/"))
}

// CheckOrigin applies the same rule a browser applies to a cross-origin
// response: the response must carry an Access-Control-Allow-Origin header
// that is either "*" or equal to the request's origin.  Requests sent without
// an origin are not checked.
func CheckOrigin(resp *http.Response, origin string) error {
	if origin == "" {
		return nil
	}
	if resp == nil {
		return fmt.Errorf("missing response: %w", ErrOriginNotAllowed)
	}
	allowed := resp.Header.Get("Access-Control-Allow-Origin")
	switch allowed {
	case "*", strings.TrimSuffix(origin, "/"):
		return nil
	case "":
		return fmt.Errorf("no Access-Control-Allow-Origin for %s (status %d): %w", origin, resp.StatusCode, ErrOriginNotAllowed)
	default:
		return fmt.Errorf("Access-Control-Allow-Origin %q does not match %s: %w", allowed, origin, ErrOriginNotAllowed)
	}
}
