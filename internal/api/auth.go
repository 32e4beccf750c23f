package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/runnerr0/llmredi/internal/domain"
)

// ErrInvalidLoginResponse is returned when /login succeeds without a token
// or user in the body.
var ErrInvalidLoginResponse = errors.New("invalid response from server")

// FlexString decodes a JSON string or number into a string. The backend
// emits user and question ids as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// Credentials is the /login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the /register request body.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Company  string `json:"company,omitempty"`
}

// AccountInfo is the user object returned by /login, /register and /me.
type AccountInfo struct {
	UserID   FlexString `json:"user_id"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Company  string     `json:"company"`
}

// AuthResponse is the body of /login and /register.
type AuthResponse struct {
	Token   string       `json:"token"`
	User    *AccountInfo `json:"user"`
	Message string       `json:"message,omitempty"`
}

// ToUser maps the backend account onto the client's user model. Missing
// fields fall back to the submitted email, "User" and "Company".
func (a AccountInfo) ToUser(submittedEmail string) domain.User {
	u := domain.User{
		ID:      string(a.UserID),
		Email:   a.Email,
		Name:    a.Username,
		Company: a.Company,
	}
	if u.Email == "" {
		u.Email = submittedEmail
	}
	if u.Name == "" {
		u.Name = "User"
	}
	if u.Company == "" {
		u.Company = "Company"
	}
	return u
}

// Login authenticates and, on success, holds and persists the returned token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, ErrInvalidLoginResponse
	}
	if err := c.SetToken(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	return &resp, nil
}

// Register creates an account. A token in the response is held and
// persisted the same way Login does.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/register", reg, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		if err := c.SetToken(ctx, resp.Token); err != nil {
			return nil, fmt.Errorf("persist token: %w", err)
		}
	}
	return &resp, nil
}

// CurrentUser validates the held token against /me.
func (c *Client) CurrentUser(ctx context.Context) (*AccountInfo, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/me", nil, &raw); err != nil {
		return nil, err
	}
	// /me answers either {"user": {...}} or the account object itself.
	var wrapped struct {
		User *AccountInfo `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var info AccountInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse /me response: %w", err)
	}
	return &info, nil
}

// StatusInfo is the /status payload. Fields beyond status and version are
// kept in Extra.
type StatusInfo struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Extra   map[string]any `json:"-"`
}

// Status fetches the backend health summary.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	var m map[string]any
	if err := c.Do(ctx, http.MethodGet, "/status", nil, &m); err != nil {
		return nil, err
	}
	info := &StatusInfo{Extra: map[string]any{}}
	for k, v := range m {
		switch k {
		case "status":
			info.Status = fmt.Sprint(v)
		case "version":
			info.Version = fmt.Sprint(v)
		default:
			info.Extra[k] = v
		}
	}
	return info, nil
}
