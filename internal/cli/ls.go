package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/powersession/internal/db"
)

func (a *app) newLsCommand() *cobra.Command {
	var filter db.RecordingFilter
	var uploaded bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List catalogued recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("uploaded") {
				filter.Uploaded = &uploaded
			}
			return a.list(cmd.Context(), filter)
		},
	}
	cmd.Flags().BoolVar(&uploaded, "uploaded", false, "only show uploaded recordings (--uploaded=false: only those not uploaded)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only show recordings with this status (recording, finished, failed)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "show at most this many recordings")
	return cmd
}

func (a *app) list(ctx context.Context, filter db.RecordingFilter) error {
	catalog, err := a.deps.OpenCatalog(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	recordings, err := catalog.Recordings().List(ctx, filter)
	if err != nil {
		return err
	}
	if len(recordings) == 0 {
		fmt.Fprintln(a.deps.Stdout, "No recordings.")
		return nil
	}

	tw := tabwriter.NewWriter(a.deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTATUS\tEXIT\tDURATION\tSIZE\tPATH\tURL")
	for _, rec := range recordings {
		exit := "-"
		if rec.ExitCode != nil {
			exit = strconv.Itoa(*rec.ExitCode)
		}
		url := rec.UploadURL
		if url == "" {
			url = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dx%d\t%s\t%s\n",
			rec.CreatedAt.Local().Format(time.DateTime), rec.Status, exit,
			rec.Duration.Round(time.Second), rec.Width, rec.Height, rec.Path, url)
	}
	return tw.Flush()
}
