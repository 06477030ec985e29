// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	t.Parallel()
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_WithExpirySkew(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getTokenOpts(WithExpirySkew(time.Minute))
	testOpts := tokenDefaults()
	testOpts.withExpirySkew = time.Minute
	assert.Equal(opts, testOpts)

	reqOpts := getReqOpts(WithExpirySkew(time.Minute))
	assert.Equal(time.Minute, reqOpts.withExpirySkew)
}

func Test_WithNow(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Minute)
	}
	opts := getConfigOpts(WithNow(testNow))
	testAssertEqualFunc(t, testNow, opts.withNowFunc, "now = %p,want %p", testNow, opts.withNowFunc)

	opts = getConfigOpts(WithNow(nil))
	assert.Nil(opts.withNowFunc)
}
