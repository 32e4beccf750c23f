package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/config"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/report"
	"github.com/runnerr0/llmredi/internal/session"
	"github.com/runnerr0/llmredi/internal/storage"
	"github.com/runnerr0/llmredi/internal/store"
)

// env is everything a command needs: config, durable storage, the
// application store and the API client bound to it.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	storage storage.Storage
	store   *store.Store
	client  *api.Client
	session *session.Manager

	out    io.Writer
	errOut io.Writer
	json   bool
	dbPath string

	// authenticated is set once a stored session was restored, so that a
	// later 401 reads as an expired session rather than bad credentials.
	authenticated bool

	closers []func() error
}

type envOptions struct {
	HTTPClient *http.Client
	Out        io.Writer
	ErrOut     io.Writer
	JSON       bool
}

// newEnv wires the store, API client and session manager over s.
func newEnv(cfg *config.Config, log logger.Logger, s storage.Storage, opts envOptions) *env {
	if log == nil {
		log = logger.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = os.Stderr
	}

	st := store.New(
		store.WithLogger(log),
		store.WithNotificationTTL(cfg.Notifications.TTL),
	)
	client := api.New(api.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RateLimit:  cfg.API.RateLimit,
		Burst:      cfg.API.Burst,
		HTTPClient: opts.HTTPClient,
		Logger:     log,
		Tokens:     session.NewTokenStore(s),
	})

	e := &env{
		cfg:     cfg,
		log:     log,
		storage: s,
		store:   st,
		client:  client,
		out:     out,
		errOut:  &lockedWriter{w: errOut},
		json:    opts.JSON,
	}
	e.session = session.NewManager(st, client, s, log)
	detach := st.Subscribe(e.printNotification)

	e.closers = append(e.closers,
		func() error { st.Close(); return nil },
		func() error { e.session.Close(); return nil },
		func() error { detach(); return nil },
	)
	return e
}

// openEnv loads config, opens the logger and the SQLite database, and
// builds the env on top of them.
func openEnv(globals *GlobalFlags) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if globals.Config != "" {
		cfg, err = config.LoadOrCreateAt(globals.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg, globals.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	e := newEnv(cfg, log, db, envOptions{JSON: globals.JSON})
	e.dbPath = dbPath
	// Closers run last to first: listeners detach before the database closes.
	e.closers = append([]func() error{
		func() error {
			_ = log.Sync()
			return nil
		},
		db.Close,
	}, e.closers...)
	return e, nil
}

// newLogger writes JSON logs to the configured file so stdout stays clean.
// Verbose mode logs at debug level and mirrors to stderr.
func newLogger(cfg *config.Config, verbose bool) (logger.Logger, error) {
	level := cfg.Logging.Level
	if verbose || cfg.API.Debug {
		level = "debug"
	}

	var paths []string
	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		paths = append(paths, logPath)
	}
	if verbose {
		paths = append(paths, "stderr")
	}
	if len(paths) == 0 {
		return logger.NewNop(), nil
	}
	return logger.New(logger.Config{Level: level, OutputPaths: paths})
}

// Close releases everything openEnv acquired, last acquired first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("Error during shutdown", logger.Error(err))
		}
	}
	e.closers = nil
}

// runCommand opens the env, runs fn with a context cancelled on interrupt,
// and turns failures into messages for the terminal.
func runCommand(globals *GlobalFlags, fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv(globals)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return e.explain(fn(ctx, e))
}

// requireSession restores the stored session or fails with ErrNotLoggedIn.
func (e *env) requireSession(ctx context.Context) error {
	ok, err := e.session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return session.ErrNotLoggedIn
	}
	e.authenticated = true
	return nil
}

// explain maps errors to what the user should do about them. Missing
// report data is only a warning.
func (e *env) explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, report.ErrNoReport):
		e.warn("No report available for this job")
		return nil
	case errors.Is(err, report.ErrReportsIncomplete):
		e.warn("Both current and new reports are required")
		return nil
	case errors.Is(err, session.ErrNotLoggedIn):
		return errors.New("not logged in: run `llmredi login` first")
	case e.authenticated && e.session.HandleAuthFailure(err):
		return errors.New("session expired: run `llmredi login` to sign in again")
	case api.IsNetworkError(err):
		return fmt.Errorf("unable to connect to server, check your connection and try again: %w", err)
	case api.StatusCode(err) >= http.StatusInternalServerError:
		return fmt.Errorf("server error, try again later: %w", err)
	case errors.Is(err, context.Canceled):
		e.log.Info("Interrupted")
		return nil
	}
	return err
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

func (e *env) warn(msg string) {
	fmt.Fprintf(e.errOut, "⚠ %s\n", msg)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(e.out)
	t.SetStyle(table.StyleLight)
	return t
}

// printNotification echoes store notifications on stderr as they are added.
func (e *env) printNotification(_, _ store.State, a store.Action) {
	add, ok := a.(store.AddNotification)
	if !ok {
		return
	}
	n := add.Notification
	fmt.Fprintf(e.errOut, "%s %s\n", notificationMark(n.Type), n.Message)
}

func notificationMark(t domain.NotificationType) string {
	switch t {
	case domain.NotifySuccess:
		return "✓"
	case domain.NotifyError:
		return "✗"
	case domain.NotifyWarning:
		return "⚠"
	}
	return "ℹ"
}

// lockedWriter serializes writes from poller goroutines and the command.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
