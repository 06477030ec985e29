// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package view

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/capdemo/auth"
	"github.com/hashicorp/capdemo/oidc"
	"github.com/hashicorp/capdemo/session"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://127.0.0.1:3000"

// testPage returns a Page for a new test provider whose consent "popup" is
// played by the provider's http client.
func testPage(t *testing.T, logOutput io.Writer) (*Page, *oidc.TestProvider, *session.Store) {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	clientID, _ := tp.ClientCreds()
	c, err := oidc.NewConfig(tp.Addr(), clientID, "", []oidc.Alg{oidc.ES256}, []string{"http://127.0.0.1/callback"},
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithOrigin(testOrigin),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(c)
	require.NoError(err)
	t.Cleanup(p.Done)

	client := tp.HTTPClient()
	opener := auth.OpenerFunc(func(ctx context.Context, u string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
	s, err := session.NewStore()
	require.NoError(err)
	controller, err := auth.NewController(p, s, auth.WithOpener(opener))
	require.NoError(err)

	logger := hclog.New(&hclog.LoggerOptions{Output: logOutput, Level: hclog.Debug})
	page, err := NewPage(controller, s, WithLogger(logger), WithTitle("capdemo"))
	require.NoError(err)
	return page, tp, s
}

func testDo(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewPage(t *testing.T) {
	t.Parallel()
	_, err := NewPage(nil, nil)
	assert.ErrorIs(t, err, auth.ErrNilParameter)
}

func TestPage_SignInAndClear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	page, tp, s := testPage(t, io.Discard)

	rec := testDo(t, page, http.MethodGet, "/")
	require.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(body, "<title>capdemo</title>")
	assert.Contains(body, `<pre id="id-token">none</pre>`)
	assert.Contains(body, `<pre id="access-token">none</pre>`)
	assert.Contains(body, "unauthenticated")
	for _, path := range []string{SignInPath, SignOutPath, ClearPath, RevokePath, SignOutLocalPath} {
		assert.Contains(body, `action="`+path+`"`)
	}

	rec = testDo(t, page, http.MethodPost, SignInPath)
	require.Equal(http.StatusSeeOther, rec.Code)
	assert.Equal("/", rec.Header().Get("Location"))

	sess := s.Session()
	require.NotNil(sess.IDToken)
	require.NotNil(sess.AccessToken)
	assert.Equal(tp.Addr(), sess.IDToken.Claims["iss"])
	assert.Equal(Displays{IDToken: sess.IDToken.Value, AccessToken: sess.AccessToken.Value}, Current(s))

	body = testDo(t, page, http.MethodGet, "/").Body.String()
	assert.Contains(body, `<pre id="id-token">`+sess.IDToken.Value+`</pre>`)
	assert.Contains(body, `<pre id="access-token">`+sess.AccessToken.Value+`</pre>`)
	assert.Contains(body, `id="claims"`)
	assert.NotContains(body, "unauthenticated")

	rec = testDo(t, page, http.MethodPost, ClearPath)
	require.Equal(http.StatusSeeOther, rec.Code)
	assert.Equal(Displays{IDToken: Placeholder, AccessToken: Placeholder}, Current(s))
	body = testDo(t, page, http.MethodGet, "/").Body.String()
	assert.Contains(body, `<pre id="id-token">none</pre>`)
	assert.Contains(body, `<pre id="access-token">none</pre>`)
	assert.NotContains(body, `id="claims"`)
}

func TestPage_Commands(t *testing.T) {
	t.Parallel()

	t.Run("revoke", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		page, tp, s := testPage(t, io.Discard)
		testDo(t, page, http.MethodPost, SignInPath)
		at, ok := s.Get(session.AccessToken)
		require.True(ok)

		rec := testDo(t, page, http.MethodPost, RevokePath)
		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.True(tp.IsRevoked(at.Value))
		assert.True(s.Session().Empty())
	})
	t.Run("signout", func(t *testing.T) {
		assert := assert.New(t)
		page, _, s := testPage(t, io.Discard)
		rec := testDo(t, page, http.MethodPost, SignOutPath)
		assert.Equal(http.StatusSeeOther, rec.Code)
		testDo(t, page, http.MethodPost, SignInPath)
		testDo(t, page, http.MethodPost, SignOutPath)
		assert.True(s.Session().Empty())
	})
	t.Run("signout-local-untrusted-origin", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var logs bytes.Buffer
		page, tp, s := testPage(t, &logs)
		testDo(t, page, http.MethodPost, SignInPath)
		before := s.Session()
		require.False(before.Empty())
		tp.SetTrustedOrigins("https://trusted.example.com")

		rec := testDo(t, page, http.MethodPost, SignOutLocalPath)
		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Equal(before, s.Session())
		assert.Contains(logs.String(), "command failed")
		assert.Contains(logs.String(), string(auth.CrossOrigin))

		body := testDo(t, page, http.MethodGet, "/").Body.String()
		assert.NotContains(body, "cross origin", "errors are not rendered")
	})
	t.Run("signout-local", func(t *testing.T) {
		assert := assert.New(t)
		page, _, s := testPage(t, io.Discard)
		testDo(t, page, http.MethodPost, SignInPath)
		testDo(t, page, http.MethodPost, SignOutLocalPath)
		assert.True(s.Session().Empty())
	})
}

func TestPage_Methods(t *testing.T) {
	t.Parallel()
	page, _, _ := testPage(t, io.Discard)
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, SignInPath, http.StatusMethodNotAllowed},
		{http.MethodGet, ClearPath, http.StatusMethodNotAllowed},
		{http.MethodPost, "/", http.StatusMethodNotAllowed},
		{http.MethodHead, "/", http.StatusOK},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+strings.ReplaceAll(tt.path, "/", "_"), func(t *testing.T) {
			assert.Equal(t, tt.want, testDo(t, page, tt.method, tt.path).Code)
		})
	}
}
