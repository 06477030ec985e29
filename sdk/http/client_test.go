// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}))

	t.Run("with-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewClient(buf.String())
		require.NoError(err)
		resp, err := c.Get(srv.URL)
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusNoContent, resp.StatusCode)
		tr := c.Transport.(*http.Transport)
		assert.Equal(uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	})
	t.Run("system-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewClient("")
		require.NoError(err)
		assert.IsType(cleanhttp.DefaultPooledTransport(), c.Transport)
		_, err = c.Get(srv.URL)
		require.Error(err)
	})
	t.Run("bad-pem", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewClient("not a cert")
		assert.True(errors.Is(err, ErrInvalidCertificatePem))
	})
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()
	const origin = "http://localhost:8080"
	resp := func(acao string) *http.Response {
		r := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
		if acao != "" {
			r.Header.Set("Access-Control-Allow-Origin", acao)
		}
		return r
	}
	tests := []struct {
		name    string
		resp    *http.Response
		origin  string
		wantErr bool
	}{
		{"match", resp(origin), origin, false},
		{"trailing-slash", resp(origin), origin + "/", false},
		{"wildcard", resp("*"), origin, false},
		{"missing", resp(""), origin, true},
		{"mismatch", resp("https://evil.example"), origin, true},
		{"no-origin", resp(""), "", false},
		{"nil-response", nil, origin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOrigin(tt.resp, tt.origin)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrOriginNotAllowed))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSetOrigin(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "https://idp.example/revoke", nil)
	SetOrigin(req, "")
	assert.Empty(t, req.Header.Get("Origin"))
	SetOrigin(req, "http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", req.Header.Get("Origin"))
}
