package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/user/powersession/internal/player"
)

func (a *app) newPlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play <file>",
		Short: "Replay a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.play(cmd.Context(), args[0])
		},
	}
}

func (a *app) play(ctx context.Context, file string) error {
	p, err := player.Load(file)
	if errors.Is(err, player.ErrSessionNotFound) {
		return userError("File %s does not exist.", file)
	}
	if err != nil {
		return err
	}
	defer p.Close()

	err = p.Play(ctx, a.deps.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
