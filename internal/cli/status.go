package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/runnerr0/llmredi/internal/logger"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string         `json:"version"`
	APIBaseURL        string         `json:"api_base_url"`
	ServerReachable   bool           `json:"server_reachable"`
	ServerStatus      string         `json:"server_status,omitempty"`
	ServerVersion     string         `json:"server_version,omitempty"`
	ServerDetails     map[string]any `json:"server_details,omitempty"`
	LoggedIn          bool           `json:"logged_in"`
	Email             string         `json:"email,omitempty"`
	DatabasePath      string         `json:"database_path,omitempty"`
	DatabaseSizeBytes int64          `json:"database_size_bytes"`
	StoredKeys        []string       `json:"stored_keys"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

// executeWith reports status using a provided env (for testing). An
// unreachable server is part of the report, not an error.
func (c *StatusCommand) executeWith(ctx context.Context, e *env) error {
	out := statusJSON{
		Version:      c.version,
		APIBaseURL:   e.cfg.API.BaseURL,
		DatabasePath: e.dbPath,
	}

	info, err := e.client.Status(ctx)
	if err != nil {
		e.log.Warn("Status check failed", logger.Error(err))
	} else {
		out.ServerReachable = true
		out.ServerStatus = info.Status
		out.ServerVersion = info.Version
		if len(info.Extra) > 0 {
			out.ServerDetails = info.Extra
		}
	}

	if _, err := e.session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	st := e.store.State()
	out.LoggedIn = st.IsLoggedIn
	if st.CurrentUser != nil {
		out.Email = st.CurrentUser.Email
	}

	keys, err := e.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list stored keys: %w", err)
	}
	out.StoredKeys = keys
	out.DatabaseSizeBytes = fileSize(e.dbPath)

	if e.json {
		return e.printJSON(out)
	}
	return c.printStatusHuman(e, out)
}

func (c *StatusCommand) printStatusHuman(e *env, s statusJSON) error {
	e.printf("llmredi Status\n")
	e.printf("==============\n")
	e.printf("Version:       %s\n", s.Version)
	e.printf("Server:        %s\n", s.APIBaseURL)
	if s.ServerReachable {
		status := s.ServerStatus
		if status == "" {
			status = "ok"
		}
		if s.ServerVersion != "" {
			status += " (" + s.ServerVersion + ")"
		}
		e.printf("Server status: %s\n", status)
		details := make([]string, 0, len(s.ServerDetails))
		for k := range s.ServerDetails {
			details = append(details, k)
		}
		sort.Strings(details)
		for _, k := range details {
			e.printf("  %-20s %v\n", k, s.ServerDetails[k])
		}
	} else {
		e.printf("Server status: unreachable\n")
	}

	e.printf("\n")
	if s.LoggedIn {
		e.printf("Session:       logged in as %s\n", s.Email)
	} else {
		e.printf("Session:       not logged in\n")
	}
	if s.DatabasePath != "" {
		e.printf("Database:      %s (%s)\n", s.DatabasePath, formatBytes(s.DatabaseSizeBytes))
	}
	e.printf("Stored keys:   %d\n", len(s.StoredKeys))
	return nil
}

// fileSize returns the size of path, or 0 when it cannot be read.
func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
