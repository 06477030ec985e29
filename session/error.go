// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrPersistFailed    = errors.New("unable to persist session")
	ErrLoadFailed       = errors.New("unable to load session")
)
