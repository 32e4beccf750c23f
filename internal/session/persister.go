// Package session keeps the authenticated session consistent across the
// store, the API client and durable storage.
package session

import (
	"context"
	"time"

	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/storage"
	"github.com/runnerr0/llmredi/internal/store"
)

const persistTimeout = 5 * time.Second

// Persister mirrors the session user and token from the store into durable
// storage. It is a store listener; attach it with store.Subscribe.
type Persister struct {
	storage storage.Storage
	log     logger.Logger
}

// NewPersister creates a Persister writing to s.
func NewPersister(s storage.Storage, log logger.Logger) *Persister {
	if log == nil {
		log = logger.NewNop()
	}
	return &Persister{storage: s, log: log}
}

// Observe writes llmredi_user and llmredi_token whenever they change and
// removes them when they are cleared.
func (p *Persister) Observe(prev, next store.State, _ store.Action) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if userChanged(prev, next) {
		var err error
		if next.CurrentUser == nil {
			err = p.storage.Remove(ctx, storage.KeyUser)
		} else {
			err = storage.SetJSON(ctx, p.storage, storage.KeyUser, next.CurrentUser)
		}
		if err != nil {
			p.log.Error("Failed to persist session user", logger.Error(err))
		}
	}

	if prev.AuthToken != next.AuthToken {
		var err error
		if next.AuthToken == "" {
			err = p.storage.Remove(ctx, storage.KeyToken)
		} else {
			err = p.storage.Set(ctx, storage.KeyToken, next.AuthToken)
		}
		if err != nil {
			p.log.Error("Failed to persist session token", logger.Error(err))
		}
	}
}

func userChanged(prev, next store.State) bool {
	if prev.CurrentUser == nil || next.CurrentUser == nil {
		return prev.CurrentUser != next.CurrentUser
	}
	return *prev.CurrentUser != *next.CurrentUser
}

// TokenStore adapts durable storage to the API client's token persistence.
type TokenStore struct {
	storage storage.Storage
}

// NewTokenStore creates a TokenStore over s.
func NewTokenStore(s storage.Storage) *TokenStore {
	return &TokenStore{storage: s}
}

func (t *TokenStore) LoadToken(ctx context.Context) (string, error) {
	tok, _, err := t.storage.Get(ctx, storage.KeyToken)
	return tok, err
}

func (t *TokenStore) SaveToken(ctx context.Context, token string) error {
	return t.storage.Set(ctx, storage.KeyToken, token)
}

func (t *TokenStore) ClearToken(ctx context.Context) error {
	return t.storage.Remove(ctx, storage.KeyToken)
}
