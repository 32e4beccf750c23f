// Package storage is the client's durable key/value storage: the place the
// session user, the auth token and cached analysis results survive between runs.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys.
const (
	KeyUser                      = "llmredi_user"
	KeyToken                     = "llmredi_token"
	KeyLatestCompetitionAnalysis = "latest_competition_analysis"
)

// Storage defines the interface for durable key/value operations.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON decodes the JSON value stored under key into out. It reports
// false when the key is absent.
func GetJSON(ctx context.Context, s Storage, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
