package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
)

var ErrEmptyKey = errors.New("gemini api key is required")

// Store persists the generation API key chosen through the key-selection
// flow. An environment key, when configured, always wins over the stored one.
type Store struct {
	sql      infra.SQLExecutor
	fallback string

	mu     sync.Mutex
	cached string
	at     time.Time
	ttl    time.Duration
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, ttl: 30 * time.Second}
}

// WithFallback sets the key used when nothing is stored.
func (s *Store) WithFallback(key string) *Store {
	s.fallback = strings.TrimSpace(key)
	return s
}

// GeminiAPIKey returns the active key, or "" when none is configured.
func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	if s.fallback != "" {
		return s.fallback, nil
	}
	s.mu.Lock()
	if s.cached != "" && time.Since(s.at) < s.ttl {
		key := s.cached
		s.mu.Unlock()
		return key, nil
	}
	s.mu.Unlock()

	key, err := s.Token(ctx, ProviderGemini)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.cached, s.at = key, time.Now()
	s.mu.Unlock()
	return key, nil
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.upsert(ctx, ProviderGemini, key, map[string]any{"selected_at": time.Now().UTC()}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached, s.at = key, time.Now()
	s.mu.Unlock()
	return nil
}

// InvalidateGeminiAPIKey drops the stored key after the remote service
// reports the key's project as missing, forcing a new selection.
func (s *Store) InvalidateGeminiAPIKey(ctx context.Context) error {
	s.mu.Lock()
	s.cached, s.at = "", time.Time{}
	s.mu.Unlock()
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderGemini)
	return err
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
