// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/capdemo/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedirect = "http://127.0.0.1:8181/callback"

func TestAuthCode(t *testing.T) {
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)
	p := testNewProvider(t, tp, "http://127.0.0.1/callback")
	rw := &SingleRequestReader{}

	tests := []struct {
		name      string
		p         *oidc.Provider
		rw        RequestReader
		sFn       SuccessResponseFunc
		eFn       ErrorResponseFunc
		wantErr   bool
		wantIsErr error
	}{
		{"valid", p, rw, testSuccessFn, testFailFn, false, nil},
		{"nil-p", nil, rw, testSuccessFn, testFailFn, true, oidc.ErrInvalidParameter},
		{"nil-rw", p, nil, testSuccessFn, testFailFn, true, oidc.ErrInvalidParameter},
		{"nil-sFn", p, rw, nil, testFailFn, true, oidc.ErrInvalidParameter},
		{"nil-eFn", p, rw, testSuccessFn, nil, true, oidc.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := AuthCode(ctx, tt.p, tt.rw, tt.sFn, tt.eFn)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}

func Test_AuthCodeResponses(t *testing.T) {
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)
	p := testNewProvider(t, tp, "http://127.0.0.1/callback")

	tests := []struct {
		name           string
		exp            time.Duration
		stateOverride  string
		codeOverride   string
		expiredReader  bool
		denyConsent    bool
		wantStatusCode int
		wantError      string
		wantIsErr      error
	}{
		{
			name:           "valid",
			exp:            time.Minute,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown-state",
			exp:            time.Minute,
			stateOverride:  "not-the-state",
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal-callback-error",
			wantIsErr:      oidc.ErrNotFound,
		},
		{
			name:           "bad-code",
			exp:            time.Minute,
			codeOverride:   "bad-code",
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal-callback-error",
			wantIsErr:      oidc.ErrExchangeFailed,
		},
		{
			name:           "consent-denied",
			exp:            time.Minute,
			denyConsent:    true,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "access_denied",
		},
		{
			name:           "expired",
			exp:            2 * time.Second,
			expiredReader:  true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal-callback-error",
			wantIsErr:      oidc.ErrExpiredRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			tp.SetDenyConsent(tt.denyConsent)
			defer tp.SetDenyConsent(false)

			v, err := oidc.NewCodeVerifier()
			require.NoError(err)
			oidcRequest, err := oidc.NewRequest(tt.exp, testRedirect, oidc.WithPKCE(v))
			require.NoError(err)
			authURL, err := p.AuthURL(ctx, oidcRequest)
			require.NoError(err)
			authResp := testAuthorize(t, tp, authURL)

			var gotErr error
			eFn := func(state string, r *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
				gotErr = e
				testFailFn(state, r, e, w, req)
			}
			var reader RequestReader = &SingleRequestReader{Request: oidcRequest}
			if tt.expiredReader {
				reader = &testExpiredReader{state: oidcRequest.State(), verifier: v}
			}
			h, err := AuthCode(ctx, p, reader, testSuccessFn, eFn)
			require.NoError(err)

			q := url.Values{}
			for k, vs := range authResp {
				q[k] = vs
			}
			if tt.stateOverride != "" {
				q.Set("state", tt.stateOverride)
			}
			if tt.codeOverride != "" {
				q.Set("code", tt.codeOverride)
			}
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, testRedirect+"?"+q.Encode(), nil))

			resp := w.Result()
			defer resp.Body.Close()
			assert.Equal(tt.wantStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(err)
			if tt.wantError == "" {
				assert.Equal("login successful", string(body))
				return
			}
			var got AuthenErrorResponse
			require.NoError(json.Unmarshal(body, &got))
			assert.Equal(tt.wantError, got.Error)
			if tt.wantIsErr != nil {
				assert.ErrorIs(gotErr, tt.wantIsErr)
			}
		})
	}
}

// testExpiredReader returns an already expired request with the given state.
type testExpiredReader struct {
	state    string
	verifier oidc.CodeVerifier
}

func (r *testExpiredReader) Read(ctx context.Context, state string) (oidc.Request, error) {
	return oidc.NewRequest(time.Millisecond, testRedirect, oidc.WithState(r.state), oidc.WithPKCE(r.verifier))
}

func TestSingleRequestReader_Read(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	oidcRequest, err := oidc.NewRequest(time.Minute, testRedirect)
	require.NoError(err)
	r := &SingleRequestReader{Request: oidcRequest}

	got, err := r.Read(context.Background(), oidcRequest.State())
	require.NoError(err)
	assert.Equal(oidcRequest, got)

	_, err = r.Read(context.Background(), "not-the-state")
	assert.ErrorIs(err, oidc.ErrNotFound)

	_, err = (&SingleRequestReader{}).Read(context.Background(), "")
	assert.ErrorIs(err, oidc.ErrNotFound)
}

func TestAuthenErrorResponse_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("access_denied", (&AuthenErrorResponse{Error: "access_denied"}).String())
	assert.Equal("access_denied: no thanks", (&AuthenErrorResponse{Error: "access_denied", Description: "no thanks"}).String())
}
