// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		opt        []Option
		wantPrefix string
		wantLen    int
	}{
		{
			name:    "no-prefix",
			wantLen: DefaultIDLength,
		},
		{
			name:       "with-prefix",
			opt:        []Option{WithPrefix("st")},
			wantPrefix: "st_",
			wantLen:    DefaultIDLength + len("st_"),
		},
		{
			name:    "with-len",
			opt:     []Option{WithLen(43)},
			wantLen: 43,
		},
		{
			name:    "ignore-zero-len",
			opt:     []Option{WithLen(0)},
			wantLen: DefaultIDLength,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewID(tt.opt...)
			require.NoError(err)
			if tt.wantPrefix != "" {
				assert.Truef(strings.HasPrefix(got, tt.wantPrefix), "NewID() = %v and wanted prefix %s", got, tt.wantPrefix)
			}
			assert.Equalf(tt.wantLen, len(got), "NewID() = %v, with len of %d and wanted len of %v", got, len(got), tt.wantLen)
			for _, c := range strings.TrimPrefix(got, tt.wantPrefix) {
				assert.Truef(strings.ContainsRune("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz", c), "unexpected char %q in %s", c, got)
			}
		})
	}
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		seen := map[string]struct{}{}
		for i := 0; i < 100; i++ {
			id, err := NewID()
			require.NoError(err)
			_, dup := seen[id]
			assert.False(dup)
			seen[id] = struct{}{}
		}
	})
}

func Test_WithPrefix(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getIDOpts(WithPrefix("n"))
	testOpts := idDefaults()
	testOpts.withPrefix = "n"
	assert.Equal(opts, testOpts)
}
