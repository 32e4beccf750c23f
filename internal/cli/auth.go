package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/session"
	"github.com/runnerr0/llmredi/internal/store"
)

type userJSON struct {
	LoggedIn bool         `json:"logged_in"`
	User     *domain.User `json:"user,omitempty"`
}

// Execute implements the go-flags Commander interface for LoginCommand.
func (c *LoginCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e)
	})
}

func (c *LoginCommand) executeWith(ctx context.Context, e *env) error {
	if c.Email == "" || c.Password == "" {
		return errors.New("--email and --password are required")
	}

	user, err := e.session.Login(ctx, c.Email, c.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if e.json {
		return e.printJSON(userJSON{LoggedIn: true, User: &user})
	}
	e.printf("Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

// Execute implements the go-flags Commander interface for RegisterCommand.
func (c *RegisterCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e)
	})
}

func (c *RegisterCommand) executeWith(ctx context.Context, e *env) error {
	if c.Email == "" || c.Password == "" || c.Username == "" {
		return errors.New("--email, --password and --username are required")
	}

	resp, err := e.client.Register(ctx, api.Registration{
		Email:    c.Email,
		Password: c.Password,
		Username: c.Username,
		Company:  c.Company,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	var user *domain.User
	if resp.Token != "" && resp.User != nil {
		u := resp.User.ToUser(c.Email)
		if u.Name == "User" {
			u.Name = c.Username
		}
		if c.Company != "" && u.Company == "Company" {
			u.Company = c.Company
		}
		if err := e.session.Adopt(ctx, u, resp.Token); err != nil {
			return err
		}
		user = &u
	}

	if e.json {
		return e.printJSON(userJSON{LoggedIn: user != nil, User: user})
	}
	if resp.Message != "" {
		e.printf("%s\n", resp.Message)
	}
	if user != nil {
		e.printf("Registered and logged in as %s <%s>\n", user.Name, user.Email)
		return nil
	}
	e.printf("Registered %s. Log in with `llmredi login`.\n", c.Email)
	return nil
}

// Execute implements the go-flags Commander interface for LogoutCommand.
func (c *LogoutCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e)
	})
}

func (c *LogoutCommand) executeWith(ctx context.Context, e *env) error {
	if _, err := e.session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if err := e.session.Logout(ctx); err != nil {
		return err
	}

	if e.json {
		return e.printJSON(userJSON{LoggedIn: false})
	}
	e.printf("Logged out.\n")
	return nil
}

// Execute implements the go-flags Commander interface for WhoamiCommand.
func (c *WhoamiCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e)
	})
}

func (c *WhoamiCommand) executeWith(ctx context.Context, e *env) error {
	if err := e.session.Bootstrap(ctx); err != nil {
		if api.IsUnauthorized(err) {
			return errors.New("stored session is no longer valid: run `llmredi login` to sign in again")
		}
		return err
	}

	st := e.store.State()
	if !st.IsLoggedIn {
		return session.ErrNotLoggedIn
	}

	if e.json {
		return e.printJSON(userJSON{LoggedIn: true, User: st.CurrentUser})
	}
	printUser(e, st.CurrentUser)
	return nil
}

func printUser(e *env, u *domain.User) {
	e.printf("Name:     %s\n", u.Name)
	e.printf("Email:    %s\n", u.Email)
	e.printf("Company:  %s\n", u.Company)
	if u.ID != "" {
		e.printf("ID:       %s\n", u.ID)
	}
}

// Execute implements the go-flags Commander interface for ProfileCommand.
func (c *ProfileCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

// executeWith works from the stored session only; profile edits stay local.
func (c *ProfileCommand) executeWith(ctx context.Context, e *env) error {
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	user := *e.store.State().CurrentUser
	if c.Name != nil || c.Email != nil || c.Company != nil {
		updated, err := e.session.UpdateProfile(ctx, store.UpdateUserProfile{
			Name:    c.Name,
			Email:   c.Email,
			Company: c.Company,
		})
		if err != nil {
			return err
		}
		user = updated
	}

	if e.json {
		return e.printJSON(userJSON{LoggedIn: true, User: &user})
	}
	printUser(e, &user)
	return nil
}
