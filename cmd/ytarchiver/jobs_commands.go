package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ytarchiver/internal/api"
)

const offlineNotice = "Daemon not running; using the local queue database"

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a video for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.Submit(cmd.Context(), api.SubmitRequest{URL: args[0], Format: format})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !remote {
					fmt.Fprintln(out, offlineNotice)
				}
				fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: mp4 or mp3 (defaults to ytdlp.default_format)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active job, its progress and the pending queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				status, err := b.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				if !remote {
					fmt.Fprintln(out, offlineNotice)
				}
				printQueueStatus(out, status, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printQueueStatus(out io.Writer, status api.StatusResponse, colorize bool) {
	lines := make([]string, 0, 4)
	if current := status.Current; current != nil {
		prog := status.Progress
		title := firstNonEmpty(prog.Title, current.Title, current.SourceURL)
		lines = append(lines,
			renderStatusLine("Job", statusOK, current.ID, colorize),
			renderStatusLine("Title", statusInfo, title, colorize),
			renderStatusLine("Progress", statusInfo, fmt.Sprintf("%s %d%%", prog.Phase, prog.Percent), colorize),
		)
	} else {
		detail := "Idle"
		kind := statusInfo
		if prog := status.Progress; prog.JobID != "" {
			detail = fmt.Sprintf("Idle (last job %s: %s)", shortID(prog.JobID), prog.Phase)
			if prog.Phase == "error" {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine("Job", kind, detail, colorize))
	}
	printSection(out, "Active", lines, colorize)
	fmt.Fprintln(out)

	if len(status.Pending) == 0 {
		printSection(out, "Pending", []string{"Queue is empty"}, colorize)
		return
	}
	printSection(out, "Pending", nil, colorize)
	rows := make([][]string, 0, len(status.Pending))
	for i, job := range status.Pending {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			job.ID,
			job.Format,
			truncate(firstNonEmpty(job.Title, job.SourceURL), 60),
		})
	}
	fmt.Fprint(out, renderTable([]string{"#", "ID", "Format", "Source"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.Cancel(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if !resp.Found {
					return fmt.Errorf("%s: %s", resp.Message, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the job queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueReconcileCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must be positive")
			}
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.Jobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Status", "Format", "Source", "Updated", "Error"},
					buildJobRows(resp.Jobs),
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultJobLimit, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		status := job.Status
		if job.Attempts > 0 {
			status = fmt.Sprintf("%s (retry %d)", status, job.Attempts)
		}
		rows = append(rows, []string{
			job.ID,
			status,
			job.Format,
			truncate(firstNonEmpty(job.Title, job.SourceURL), 48),
			job.UpdatedAt,
			truncate(job.ErrorMessage, 48),
		})
	}
	return rows
}

func newQueueReconcileCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reclaim an active job that no worker owns",
		Long: "Reclaim the active job when no live worker owns it or its heartbeat is stale.\n" +
			"--force clears the active job even when a worker is still running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b backend, remote bool) error {
				resp, err := b.Reconcile(cmd.Context(), force)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Clear the active job even if a worker is alive")
	return cmd
}
