// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package id generates random, URL safe identifiers.
package id

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrInvalidLength is returned when a non-positive length is requested.
var ErrInvalidLength = errors.New("length must be greater than zero")

// New generates an ID of length n with an optional prefix, which is separated
// from the random part by an underscore.
func New(optionalPrefix string, n int) (string, error) {
	id, err := Random(n)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}

// Random returns a base62 string of length n read from crypto/rand. Bytes that
// would bias the distribution are discarded.
func Random(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	const maxByte = byte(255 - 256%len(charset))
	out := make([]byte, 0, n)
	for len(out) < n {
		buf, err := uuid.GenerateRandomBytes(n * 2)
		if err != nil {
			return "", err
		}
		for _, b := range buf {
			if b > maxByte {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
