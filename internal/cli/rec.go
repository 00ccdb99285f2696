package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/powersession/internal/db"
	"github.com/user/powersession/internal/recorder"
)

func (a *app) newRecCommand() *cobra.Command {
	var command string
	var force bool

	cmd := &cobra.Command{
		Use:   "rec <file>",
		Short: "Record a terminal session to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.record(cmd.Context(), args[0], command, force)
		},
	}
	cmd.Flags().StringVarP(&command, "command", "c", "", "command to record (default: $SHELL)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite the file if it already exists")
	return cmd
}

func (a *app) record(ctx context.Context, file, command string, force bool) error {
	rec, err := recorder.New(recorder.Options{
		Path:    file,
		Command: command,
		Force:   force,
		Stdin:   a.deps.Stdin,
		Stdout:  a.deps.Stdout,
	})
	if errors.Is(err, recorder.ErrSessionExists) {
		return userError("Target file %s already exists. Use -f/--force to overwrite it.", file)
	}
	if err != nil {
		return err
	}

	console, err := a.deps.NewConsole("")
	if err != nil {
		if abortErr := rec.Abort(); abortErr != nil {
			slog.Warn("remove unused recording", "path", file, "error", abortErr)
		}
		return err
	}

	// Without the catalog option rec writes only the recording file.
	path := absPath(file)
	var catalog *db.DB
	if a.cfg.Catalog {
		catalog = a.openCatalog(ctx)
	}
	if catalog != nil {
		defer catalog.Close()
		size := console.Size()
		entry := &db.Recording{
			Path:    path,
			Command: rec.Command(),
			Width:   int(size.Width),
			Height:  int(size.Height),
			Status:  db.StatusRecording,
		}
		if err := catalog.Recordings().Upsert(ctx, entry); err != nil {
			slog.Warn("catalog recording", "path", path, "error", err)
			catalog = nil
		}
	}

	res, runErr := rec.Run(console)
	if catalog != nil {
		finishCatalogEntry(ctx, catalog, path, res, runErr)
	}
	return runErr
}

func finishCatalogEntry(ctx context.Context, catalog *db.DB, path string, res *recorder.Result, runErr error) {
	status, exitCode := db.StatusFailed, -1
	var duration time.Duration
	var events int
	if res != nil {
		exitCode, duration, events = res.ExitCode, res.Duration, res.Events
		if runErr == nil {
			status = db.StatusFinished
		}
	}
	if err := catalog.Recordings().Finish(ctx, path, exitCode, duration, events, status); err != nil {
		slog.Warn("catalog recording result", "path", path, "error", err)
	}
}
