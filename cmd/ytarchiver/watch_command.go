package main

import (
	"errors"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"ytarchiver/internal/api"
	"ytarchiver/internal/tui"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the active job and pending queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fd := os.Stdin.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
				return errors.New("watch requires an interactive terminal (TTY)")
			}
			return ctx.withClient(cmd, func(client *api.Client) error {
				return tui.Run(cmd.Context(), client, interval)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", tui.DefaultInterval, "Status polling interval")
	return cmd
}
