// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

// TestingT defines a very slim interface required by the TestProvider and any
// test functions it uses.
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Log(...interface{})
}

// CleanupT defines an single function interface for a testing.Cleanup(func()).
type CleanupT interface{ Cleanup(func()) }

// HelperT defines a single function interface for a testing.Helper()
type HelperT interface{ Helper() }

// TestingLogger defines a logger that will implement the TestingT interface so
// it can be used with StartTestProvider(...) as its t TestingT parameter.
// This is how the capdemo CLI runs a TestProvider outside of a test.
type TestingLogger struct {
	Logger hclog.Logger
}

// NewTestingLogger makes a new TestingLogger
func NewTestingLogger(logger hclog.Logger) (*TestingLogger, error) {
	if logger == nil {
		return nil, errors.New("missing logger")
	}
	return &TestingLogger{
		Logger: logger,
	}, nil
}

// Errorf will output the error to the log
func (l *TestingLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, args...))
}

// FailNow will panic
func (l *TestingLogger) FailNow() {
	panic("testing.T failed, see logs for output (if any)")
}

// Log will output the args to the log
func (l *TestingLogger) Log(args ...interface{}) {
	l.Logger.Info(fmt.Sprint(args...))
}

// TestGenerateKeys will generate a test ECDSA P-256 pub/priv key pair.
func TestGenerateKeys(t TestingT) (crypto.PublicKey, crypto.PrivateKey) {
	if v, ok := t.(HelperT); ok {
		v.Helper()
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Errorf("TestGenerateKeys: unable to generate key: %s", err)
		t.FailNow()
	}
	return &priv.PublicKey, priv
}

// TestSignJWT will bundle the provided claims into a test signed JWT.
func TestSignJWT(t TestingT, key crypto.PrivateKey, alg Alg, claims interface{}, keyID string) string {
	if v, ok := t.(HelperT); ok {
		v.Helper()
	}
	hdr := map[jose.HeaderKey]interface{}{}
	if keyID != "" {
		hdr["kid"] = keyID
	}
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key},
		(&jose.SignerOptions{ExtraHeaders: hdr}).WithType("JWT"),
	)
	if err != nil {
		t.Errorf("TestSignJWT: unable to create signer: %s", err)
		t.FailNow()
	}
	raw, err := jwt.Signed(sig).
		Claims(claims).
		Serialize()
	if err != nil {
		t.Errorf("TestSignJWT: unable to sign claims: %s", err)
		t.FailNow()
	}
	return raw
}

// testAssertEqualFunc gives you a way to assert that two functions passed as
// interface{} are equal.  This isn't easy to do with reflect.DeepEqual
// because functions are only ever equal to nil.
func testAssertEqualFunc(t *testing.T, wantFunc, gotFunc interface{}, format string, args ...interface{}) {
	t.Helper()
	want := runtime.FuncForPC(reflect.ValueOf(wantFunc).Pointer()).Name()
	got := runtime.FuncForPC(reflect.ValueOf(gotFunc).Pointer()).Name()
	assert.Equalf(t, want, got, format, args...)
}
