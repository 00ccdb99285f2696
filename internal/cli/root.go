// Package cli wires the powersession commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/powersession/internal/api"
	"github.com/user/powersession/internal/config"
	"github.com/user/powersession/internal/db"
	"github.com/user/powersession/internal/logging"
	"github.com/user/powersession/internal/pty"
	"github.com/user/powersession/internal/recorder"
)

// Deps are the collaborators the commands use. Zero fields get the real
// implementations.
type Deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig  func() (*config.Config, error)
	NewConsole  func(workDir string) (recorder.Console, error)
	NewService  func(cfg *config.Config) api.Service
	OpenCatalog func(ctx context.Context, path string) (*db.DB, error)
}

func (d *Deps) defaults() {
	if d.Stdin == nil {
		d.Stdin = os.Stdin
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.LoadConfig == nil {
		d.LoadConfig = config.Load
	}
	if d.NewConsole == nil {
		d.NewConsole = func(workDir string) (recorder.Console, error) {
			s, err := pty.NewSession(workDir)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	if d.NewService == nil {
		d.NewService = func(cfg *config.Config) api.Service {
			return api.NewAsciinema(cfg.APIServer, cfg.InstallID)
		}
	}
	if d.OpenCatalog == nil {
		d.OpenCatalog = db.Open
	}
}

type app struct {
	deps     Deps
	logLevel string
	cfg      *config.Config
	closeLog func() error
}

// NewRootCommand builds the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root, _ := newRoot(deps)
	return root
}

func newRoot(deps Deps) (*cobra.Command, *app) {
	deps.defaults()
	a := &app{deps: deps}

	root := &cobra.Command{
		Use:           "powersession",
		Short:         "Record, play and share terminal sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetIn(deps.Stdin)
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	root.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "log level: trace, debug, info, warn, error, off")

	root.AddCommand(
		a.newRecCommand(),
		a.newPlayCommand(),
		a.newAuthCommand(),
		a.newUploadCommand(),
		a.newLsCommand(),
		a.newRmCommand(),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.deps.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = a.logLevel
	}
	closeLog, err := logging.Init(level, cfg.LogFile)
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	slog.Debug("command started", "command", cmd.Name(), "config", cfg.ConfigPath)
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// openCatalog opens the recordings database. Failures are logged and yield
// nil: the catalog never blocks recording or playback.
func (a *app) openCatalog(ctx context.Context) *db.DB {
	catalog, err := a.deps.OpenCatalog(ctx, a.cfg.DBPath)
	if err != nil {
		slog.Warn("recording catalog unavailable", "path", a.cfg.DBPath, "error", err)
		return nil
	}
	return catalog
}

func absPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}

// Execute runs the command line args and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Deps) int {
	root, a := newRoot(deps)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if closeErr := a.teardown(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		return 0
	}

	stderr := root.ErrOrStderr()
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
