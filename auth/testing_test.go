// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/hashicorp/capdemo/oidc"
	"github.com/hashicorp/capdemo/session"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin          = "http://127.0.0.1:3000"
	testUntrustedOrigin = "https://untrusted.example.com"
)

// testOpener plays the browser popup: it requests the url with the test
// provider's client and follows its redirects back to the callback listener.
type testOpener struct {
	client *http.Client

	mu   sync.Mutex
	urls []string
}

func newTestOpener(tp *oidc.TestProvider) *testOpener {
	return &testOpener{client: tp.HTTPClient()}
}

func (o *testOpener) Open(ctx context.Context, u string) error {
	o.mu.Lock()
	o.urls = append(o.urls, u)
	o.mu.Unlock()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (o *testOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func testNewProvider(t *testing.T, tp *oidc.TestProvider) *oidc.Provider {
	t.Helper()
	clientID, secret := tp.ClientCreds()
	c, err := oidc.NewConfig(
		tp.Addr(),
		clientID,
		oidc.ClientSecret(secret),
		[]oidc.Alg{oidc.ES256},
		[]string{"http://127.0.0.1/callback"},
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithOrigin(testOrigin),
	)
	require.NoError(t, err)
	p, err := oidc.NewProvider(c)
	require.NoError(t, err)
	t.Cleanup(p.Done)
	return p
}

// testController returns a Controller for a new test provider, with a
// testOpener unless the opts override it.
func testController(t *testing.T, opt ...Option) (*Controller, *oidc.TestProvider, *session.Store, *testOpener) {
	t.Helper()
	tp := oidc.StartTestProvider(t)
	opener := newTestOpener(tp)
	s, err := session.NewStore()
	require.NoError(t, err)
	c, err := NewController(testNewProvider(t, tp), s, append([]Option{WithOpener(opener)}, opt...)...)
	require.NoError(t, err)
	return c, tp, s, opener
}
