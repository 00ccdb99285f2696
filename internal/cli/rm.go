package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) newRmCommand() *cobra.Command {
	var deleteFile bool

	cmd := &cobra.Command{
		Use:   "rm <file>",
		Short: "Remove a recording from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.remove(cmd.Context(), args[0], deleteFile)
		},
	}
	cmd.Flags().BoolVar(&deleteFile, "delete", false, "also delete the recording file")
	return cmd
}

func (a *app) remove(ctx context.Context, file string, deleteFile bool) error {
	catalog, err := a.deps.OpenCatalog(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	path := absPath(file)
	entry, err := catalog.Recordings().GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if entry == nil {
		return userError("Recording %s is not in the catalog.", file)
	}
	if err := catalog.Recordings().Delete(ctx, path); err != nil {
		return err
	}

	if deleteFile {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete recording: %w", err)
		}
	}
	fmt.Fprintf(a.deps.Stdout, "Removed %s.\n", entry.Path)
	return nil
}
