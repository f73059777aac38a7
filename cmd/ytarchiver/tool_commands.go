package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolCommand(ctx *commandContext) *cobra.Command {
	toolCmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect and update the yt-dlp binary",
	}

	var asJSON bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Compare the installed yt-dlp with the latest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.ToolVersion(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				latestKind := statusOK
				latestDetail := resp.Latest
				if resp.UpdateAvailable {
					latestKind = statusWarn
					latestDetail += " (update available: `ytarchiver tool update`)"
				}
				printSection(out, "yt-dlp", []string{
					renderStatusLine("Installed", statusInfo, resp.Installed, colorize),
					renderStatusLine("Latest", latestKind, latestDetail, colorize),
				}, colorize)
				return nil
			})
		},
	}
	versionCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Run the configured yt-dlp update command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.UpdateTool(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Output != "" {
					fmt.Fprintln(out, resp.Output)
				}
				fmt.Fprintf(out, "yt-dlp now at %s\n", resp.Installed)
				return nil
			})
		},
	}

	toolCmd.AddCommand(versionCmd, updateCmd)
	return toolCmd
}
