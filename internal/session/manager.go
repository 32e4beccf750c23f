package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/storage"
	"github.com/runnerr0/llmredi/internal/store"
)

// ErrNotLoggedIn is returned when an operation needs a session and none is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// versioned is implemented by storage that can tell when another process
// has written to it.
type versioned interface {
	DataVersion(ctx context.Context) (int64, error)
}

// Manager runs the login, logout and startup validation flows.
type Manager struct {
	store   *store.Store
	client  *api.Client
	storage storage.Storage
	log     logger.Logger
	detach  func()

	mu          sync.Mutex
	lastVersion int64
}

// NewManager wires the persistence observer into st and makes any 401
// from client end the session.
func NewManager(st *store.Store, client *api.Client, s storage.Storage, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	m := &Manager{
		store:   st,
		client:  client,
		storage: s,
		log:     log,
	}
	m.detach = st.Subscribe(NewPersister(s, log).Observe)
	client.OnUnauthorized(m.expire)
	return m
}

// Close detaches the persistence observer.
func (m *Manager) Close() {
	m.client.OnUnauthorized(nil)
	m.detach()
}

// Bootstrap restores a persisted session. The stored token is validated
// against the backend; any failure clears both stored keys. The auth check
// is always marked finished.
func (m *Manager) Bootstrap(ctx context.Context) error {
	defer m.store.Dispatch(store.AuthChecked{})

	m.rememberVersion(ctx)

	user, token, err := m.loadSession(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	m.client.UseToken(token)
	if _, err := m.client.CurrentUser(ctx); err != nil {
		m.log.Warn("Stored session failed validation", logger.Error(err))
		m.client.UseToken("")
		if clearErr := m.clearPersisted(ctx); clearErr != nil {
			return clearErr
		}
		return fmt.Errorf("validate session: %w", err)
	}

	m.store.Dispatch(store.Login{User: *user, Token: token})
	return nil
}

// Restore loads a persisted session without contacting the backend. A token
// the backend later rejects ends the session through the 401 hook. It
// reports whether a session was restored.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	defer m.store.Dispatch(store.AuthChecked{})

	m.rememberVersion(ctx)

	user, token, err := m.loadSession(ctx)
	if err != nil || user == nil {
		return false, err
	}
	m.client.UseToken(token)
	m.store.Dispatch(store.Login{User: *user, Token: token})
	return true, nil
}

// Login authenticates and records the session.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.User, error) {
	resp, err := m.client.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	user := resp.User.ToUser(email)
	m.store.Dispatch(store.Login{User: user, Token: resp.Token})
	m.log.Info("Logged in", logger.String("email", user.Email))
	return user, nil
}

// Adopt records a session obtained outside Login, such as a registration
// that returned a token.
func (m *Manager) Adopt(ctx context.Context, user domain.User, token string) error {
	if token == "" {
		return errors.New("adopt session: empty token")
	}
	if err := m.client.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	m.store.Dispatch(store.Login{User: user, Token: token})
	m.log.Info("Session started", logger.String("email", user.Email))
	return nil
}

// Logout ends the session. Both stored keys are removed before it returns,
// whatever the store held.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.client.ClearToken(ctx)
	m.store.Dispatch(store.Logout{})
	if clearErr := m.clearPersisted(ctx); clearErr != nil {
		return clearErr
	}
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// UpdateProfile patches the signed-in user and stores the result.
func (m *Manager) UpdateProfile(ctx context.Context, patch store.UpdateUserProfile) (domain.User, error) {
	st := m.store.Dispatch(patch)
	if !st.IsLoggedIn || st.CurrentUser == nil {
		return domain.User{}, ErrNotLoggedIn
	}
	user := *st.CurrentUser
	if err := storage.SetJSON(ctx, m.storage, storage.KeyUser, user); err != nil {
		return domain.User{}, fmt.Errorf("store profile: %w", err)
	}
	m.log.Info("Profile updated", logger.String("email", user.Email))
	return user, nil
}

// HandleAuthFailure ends the session when err is a 401 from the backend and
// reports whether it was one. Ending an already ended session is a no-op.
func (m *Manager) HandleAuthFailure(err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	m.expire()
	return true
}

func (m *Manager) expire() {
	m.client.UseToken("")
	if !m.store.State().IsLoggedIn {
		return
	}
	m.log.Warn("Session rejected by backend, logging out")
	m.store.Dispatch(store.Logout{})
	m.store.Notify("Your session has expired. Please log in again.", domain.NotifyError, false)
}

// Sync reloads the stored session when another process has changed it.
// It reports whether the store was updated.
func (m *Manager) Sync(ctx context.Context) (bool, error) {
	v, ok := m.storage.(versioned)
	if !ok {
		return false, nil
	}
	version, err := v.DataVersion(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	unchanged := version == m.lastVersion
	m.lastVersion = version
	m.mu.Unlock()
	if unchanged {
		return false, nil
	}

	user, token, err := m.loadPersisted(ctx)
	if err != nil {
		return false, err
	}

	state := m.store.State()
	switch {
	case user != nil && token != "":
		if state.IsLoggedIn && state.AuthToken == token && *state.CurrentUser == *user {
			return false, nil
		}
		m.client.UseToken(token)
		m.store.Dispatch(store.Login{User: *user, Token: token})
		m.log.Info("Session updated by another process", logger.String("email", user.Email))
		return true, nil
	case state.IsLoggedIn:
		m.client.UseToken("")
		m.store.Dispatch(store.Logout{})
		m.log.Info("Session ended by another process")
		return true, nil
	}
	return false, nil
}

func (m *Manager) rememberVersion(ctx context.Context) {
	v, ok := m.storage.(versioned)
	if !ok {
		return
	}
	if version, err := v.DataVersion(ctx); err == nil {
		m.mu.Lock()
		m.lastVersion = version
		m.mu.Unlock()
	}
}

// loadSession returns the stored user and token. Unreadable or half-stored
// sessions are removed and reported as no session.
func (m *Manager) loadSession(ctx context.Context) (*domain.User, string, error) {
	user, token, err := m.loadPersisted(ctx)
	if err != nil {
		m.log.Warn("Discarding unreadable stored session", logger.Error(err))
		m.client.UseToken("")
		return nil, "", m.clearPersisted(ctx)
	}
	if (user == nil) != (token == "") {
		m.log.Warn("Discarding incomplete stored session",
			logger.Bool("has_user", user != nil),
			logger.Bool("has_token", token != ""),
		)
		m.client.UseToken("")
		return nil, "", m.clearPersisted(ctx)
	}
	return user, token, nil
}

// loadPersisted reads the stored user directly and the token through the
// client's token store, leaving the client holding that token.
func (m *Manager) loadPersisted(ctx context.Context) (*domain.User, string, error) {
	var user domain.User
	found, err := storage.GetJSON(ctx, m.storage, storage.KeyUser, &user)
	if err != nil {
		return nil, "", err
	}
	if err := m.client.LoadToken(ctx); err != nil {
		return nil, "", err
	}
	token := m.client.Token()
	if !found {
		return nil, token, nil
	}
	return &user, token, nil
}

func (m *Manager) clearPersisted(ctx context.Context) error {
	if err := m.storage.Remove(ctx, storage.KeyUser); err != nil {
		return fmt.Errorf("clear stored user: %w", err)
	}
	if err := m.storage.Remove(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("clear stored token: %w", err)
	}
	return nil
}
