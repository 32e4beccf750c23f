package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/session"
	"github.com/runnerr0/llmredi/internal/storage"
)

func TestLogin_PrintsUserAndPersistsSession(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com795123", body["email"])
		_, _ = io.WriteString(w, `{"token":"t1","user":{"email":"a@b.com795123","username":"A"}}`)
	})
	cmd := &LoginCommand{Email: "a@b.com795123", Password: "x", globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	assert.Equal(t, "Logged in as A <a@b.com795123>\n", te.stdout.String())
	tok, ok := te.stored(t, storage.KeyToken)
	require.True(t, ok)
	assert.Equal(t, "t1", tok)

	raw, ok := te.stored(t, storage.KeyUser)
	require.True(t, ok)
	var u domain.User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, "A", u.Name)
}

func TestLogin_RequiresCredentials(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called")
	})
	cmd := &LoginCommand{Email: "a@b.com", globals: &GlobalFlags{}}

	err := cmd.executeWith(context.Background(), te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email and --password are required")
}

func TestLogin_BadCredentialsShowServerMessage(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
	})
	cmd := &LoginCommand{Email: "a@b.com", Password: "bad", globals: &GlobalFlags{}}

	err := te.explain(cmd.executeWith(context.Background(), te.env))
	require.Error(t, err)
	assert.Equal(t, "login failed: Invalid credentials", err.Error())
	_, ok := te.stored(t, storage.KeyToken)
	assert.False(t, ok)
}

func TestLogin_JSON(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"t1","user":{"user_id":7,"email":"a@b.com","username":"A","company":"Acme"}}`)
	})
	te.json = true
	cmd := &LoginCommand{Email: "a@b.com", Password: "x", globals: &GlobalFlags{JSON: true}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	var got userJSON
	require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &got))
	assert.True(t, got.LoggedIn)
	require.NotNil(t, got.User)
	assert.Equal(t, "7", got.User.ID)
	assert.Equal(t, "Acme", got.User.Company)
}

func TestRegister_WithTokenLogsIn(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "A", body["username"])
		assert.Equal(t, "Acme", body["company"])
		_, _ = io.WriteString(w, `{"token":"t2","user":{"email":"a@b.com"},"message":"Welcome"}`)
	})
	cmd := &RegisterCommand{Email: "a@b.com", Password: "x", Username: "A", Company: "Acme", globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	out := te.stdout.String()
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "Registered and logged in as A <a@b.com>")
	st := te.store.State()
	assert.True(t, st.IsLoggedIn)
	assert.Equal(t, "Acme", st.CurrentUser.Company)
	tok, ok := te.stored(t, storage.KeyToken)
	require.True(t, ok)
	assert.Equal(t, "t2", tok)
}

func TestRegister_WithoutToken(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Account created"}`)
	})
	cmd := &RegisterCommand{Email: "a@b.com", Password: "x", Username: "A", globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	assert.Contains(t, te.stdout.String(), "Log in with `llmredi login`")
	assert.False(t, te.store.State().IsLoggedIn)
	_, ok := te.stored(t, storage.KeyToken)
	assert.False(t, ok)
}

func TestLogout_ClearsStoredSession(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("logout must not call the backend")
	})
	te.seedSession(t)
	cmd := &LogoutCommand{globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	assert.Equal(t, "Logged out.\n", te.stdout.String())
	_, ok := te.stored(t, storage.KeyUser)
	assert.False(t, ok)
	_, ok = te.stored(t, storage.KeyToken)
	assert.False(t, ok)
	assert.Empty(t, te.client.Token())
}

func TestWhoami_ValidatesSession(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/me", r.URL.Path)
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"user":{"user_id":1,"email":"a@b.com","username":"A"}}`)
	})
	te.seedSession(t)
	cmd := &WhoamiCommand{globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	out := te.stdout.String()
	assert.Contains(t, out, "Name:     A")
	assert.Contains(t, out, "Email:    a@b.com")
	assert.Contains(t, out, "Company:  Acme")
}

func TestWhoami_RejectedSessionIsCleared(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	te.seedSession(t)
	cmd := &WhoamiCommand{globals: &GlobalFlags{}}

	err := cmd.executeWith(context.Background(), te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer valid")
	_, ok := te.stored(t, storage.KeyToken)
	assert.False(t, ok)
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called without a session")
	})
	cmd := &WhoamiCommand{globals: &GlobalFlags{}}

	err := cmd.executeWith(context.Background(), te.env)
	assert.True(t, errors.Is(err, session.ErrNotLoggedIn))
	assert.EqualError(t, te.explain(err), "not logged in: run `llmredi login` first")
}

func TestProfile_PrintsStoredUser(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("profile must not contact the backend")
	})
	te.seedSession(t)

	require.NoError(t, (&ProfileCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env))

	out := te.stdout.String()
	assert.Contains(t, out, "Name:     A")
	assert.Contains(t, out, "Company:  Acme")
}

func TestProfile_UpdatesOnlyGivenFields(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("profile must not contact the backend")
	})
	te.seedSession(t)
	te.json = true
	company := "Globex"

	require.NoError(t, (&ProfileCommand{Company: &company, globals: &GlobalFlags{}}).executeWith(context.Background(), te.env))

	var out userJSON
	require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &out))
	require.NotNil(t, out.User)
	assert.Equal(t, "Globex", out.User.Company)
	assert.Equal(t, "A", out.User.Name)
	assert.Equal(t, "a@b.com", out.User.Email)

	raw, ok := te.stored(t, storage.KeyUser)
	require.True(t, ok)
	var u domain.User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, "Globex", u.Company)
	assert.Equal(t, "A", u.Name)
}

func TestProfile_RequiresSession(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called without a session")
	})
	name := "B"

	err := (&ProfileCommand{Name: &name, globals: &GlobalFlags{}}).executeWith(context.Background(), te.env)
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
	_, ok := te.stored(t, storage.KeyUser)
	assert.False(t, ok)
}
