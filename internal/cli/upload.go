package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/powersession/internal/asciicast"
	"github.com/user/powersession/internal/db"
)

func (a *app) newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a recording to the sharing server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.upload(cmd.Context(), args[0])
		},
	}
}

func (a *app) upload(ctx context.Context, file string) error {
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return userError("File %s does not exist.", file)
	}
	if err := a.cfg.EnsureInstallID(); err != nil {
		return err
	}

	url, err := a.deps.NewService(a.cfg).Upload(ctx, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.deps.Stdout, "Result Url: %s\n", url)

	if catalog := a.openCatalog(ctx); catalog != nil {
		defer catalog.Close()
		catalogUpload(ctx, catalog, absPath(file), url)
	}
	return nil
}

// catalogUpload stores url for path, registering the recording first when
// rec ran without the catalog.
func catalogUpload(ctx context.Context, catalog *db.DB, path, url string) {
	repo := catalog.Recordings()
	existing, err := repo.GetByPath(ctx, path)
	if err != nil {
		slog.Warn("catalog lookup", "path", path, "error", err)
		return
	}
	if existing == nil {
		entry := &db.Recording{Path: path, Status: db.StatusFinished}
		if header, err := readHeader(path); err == nil {
			entry.Width, entry.Height = int(header.Width), int(header.Height)
		} else {
			slog.Info("recording header unreadable", "path", path, "error", err)
		}
		if err := repo.Upsert(ctx, entry); err != nil {
			slog.Warn("catalog uploaded recording", "path", path, "error", err)
			return
		}
	}
	if err := repo.SetUploadURL(ctx, path, url); err != nil {
		slog.Warn("catalog upload url", "path", path, "error", err)
	}
}

func readHeader(path string) (asciicast.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return asciicast.Header{}, err
	}
	defer f.Close()
	r, err := asciicast.NewReader(f)
	if err != nil {
		return asciicast.Header{}, err
	}
	return r.Header(), nil
}
