// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileSnapshot is the on disk session.  Unlike Token's json encoding, it
// carries the token values.
type fileSnapshot struct {
	Tokens map[TokenType]fileToken `json:"tokens"`
}

type fileToken struct {
	Value     string                 `json:"value"`
	ExpiresAt time.Time              `json:"expiresAt"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
}

func save(path string, tokens map[TokenType]*Token) error {
	snap := fileSnapshot{Tokens: make(map[TokenType]fileToken, len(tokens))}
	for tt, t := range tokens {
		snap.Tokens[tt] = fileToken{Value: t.Value, ExpiresAt: t.ExpiresAt, Claims: t.Claims}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrPersistFailed)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", err, ErrPersistFailed)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", err, ErrPersistFailed)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%s: %w", err, ErrPersistFailed)
	}
	return nil
}

func load(path string) (map[TokenType]*Token, error) {
	tokens := map[TokenType]*Token{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return tokens, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", err, ErrLoadFailed)
	}
	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", path, err, ErrLoadFailed)
	}
	for tt, t := range snap.Tokens {
		if !tt.valid() || t.Value == "" {
			continue
		}
		tokens[tt] = &Token{Value: t.Value, ExpiresAt: t.ExpiresAt, Claims: t.Claims}
	}
	return tokens, nil
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
