package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"remap/internal/config"
	"remap/internal/errors"
	"remap/internal/paths"
	"remap/internal/project"
	"remap/internal/session"
	"remap/internal/slogutil"
	"remap/internal/storage"
)

// runtime is what every command starts from: the session directory, the merged
// configuration and the logger
type runtime struct {
	root    string
	cfg     *config.Config
	decl    *project.Declaration
	logger  *slog.Logger
	format  OutputFormat
	factory *slogutil.LoggerFactory
}

// newRuntime loads .remap/config.json and REMAP.toml and builds the CLI logger
func newRuntime() (*runtime, error) {
	format, err := ParseOutputFormat(formatFlag)
	if err != nil {
		return nil, err
	}
	root, err := getRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	decl, err := project.LoadDeclaration(root)
	if err != nil {
		return nil, err
	}
	if decl != nil {
		decl.ApplyTo(cfg)
	}

	var cliLevel *slog.Level
	if verbosity > 0 || quietFlag {
		level := slogutil.LevelFromVerbosity(verbosity, quietFlag)
		cliLevel = &level
	}
	factory := slogutil.NewLoggerFactory(root, cfg, cliLevel)

	return &runtime{
		root:    root,
		cfg:     cfg,
		decl:    decl,
		logger:  factory.CLILogger(),
		format:  format,
		factory: factory,
	}, nil
}

// Close releases log files
func (rt *runtime) Close() {
	_ = rt.factory.Close()
}

// workspace is an open session backed by the session database
type workspace struct {
	*session.Session
	db    *storage.DB
	store *storage.SessionStore
}

// openStore opens .remap/session.db and wraps it in a fresh, unloaded session
func (rt *runtime) openStore() (*workspace, error) {
	db, err := storage.Open(rt.root, slogutil.Component(rt.logger, "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &workspace{
		Session: session.New(rt.cfg, slogutil.Component(rt.logger, "session")),
		db:      db,
		store:   storage.NewSessionStore(db),
	}, nil
}

// openWorkspace resumes the persisted session. Without one it fails with
// SESSION_MISSING and creates nothing on disk.
func (rt *runtime) openWorkspace(ctx context.Context) (*workspace, error) {
	if !paths.SessionExists(rt.root) {
		return nil, errors.New(errors.SessionMissing, "no archive is loaded in "+rt.root)
	}
	ws, err := rt.openStore()
	if err != nil {
		return nil, err
	}
	if err := ws.Resume(ctx, ws.store); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// save persists the session after a mutation
func (ws *workspace) save(ctx context.Context) error {
	return ws.Save(ctx, ws.store)
}

// Close drops the session's observers and closes the database
func (ws *workspace) Close() {
	ws.Session.Close()
	_ = ws.db.Close()
}

// newContext returns a context cancelled on interrupt
func newContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// withWorkspace runs fn against the resumed session and saves it afterwards when
// mutate is set
func withWorkspace(cmd *cobra.Command, mutate bool, fn func(ctx context.Context, rt *runtime, ws *workspace) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	ws, err := rt.openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := fn(ctx, rt, ws); err != nil {
		return err
	}
	if !mutate {
		return nil
	}
	// An interrupted bulk pass still keeps what it renamed
	if err := ws.save(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
