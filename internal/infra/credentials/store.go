// Package credentials reads provider API keys kept in the integration_tokens table.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"postgen/internal/infra"
	"postgen/internal/sqlinline"
)

const ProviderGemini = "gemini"

// ErrEmptyKey is returned when storing a blank key.
var ErrEmptyKey = errors.New("credentials: api key is required")

// tokenProperties is stored next to the key so operators can tell which key
// is live without reading it back.
type tokenProperties struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// ResolveGeminiAPIKey prefers an explicitly configured key and falls back to
// the stored one. An empty result is not an error: the generation executor
// reports the provider as unavailable instead.
func (s *Store) ResolveGeminiAPIKey(ctx context.Context, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	key, err := s.token(ctx, ProviderGemini)
	if err != nil {
		return "", fmt.Errorf("load gemini key: %w", err)
	}
	return key, nil
}

// SetGeminiAPIKey stores key and returns its fingerprint.
func (s *Store) SetGeminiAPIKey(ctx context.Context, key, source string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	props := tokenProperties{Source: source, Fingerprint: Fingerprint(key)}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderGemini, key, raw); err != nil {
		return "", fmt.Errorf("store gemini key: %w", err)
	}
	return props.Fingerprint, nil
}

// DeleteGeminiAPIKey reports whether a stored key was removed.
func (s *Store) DeleteGeminiAPIKey(ctx context.Context) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderGemini)
	if err != nil {
		return false, fmt.Errorf("delete gemini key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) token(ctx context.Context, provider string) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Fingerprint masks a key down to its last four characters.
func Fingerprint(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "..." + key[len(key)-4:]
}
