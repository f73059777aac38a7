package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ytarchiver/internal/queue"
)

type queueHealthReport struct {
	Database queue.DatabaseHealth `json:"database"`
	Jobs     queue.HealthSummary  `json:"jobs"`
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, readability, job counts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				report := queueHealthReport{}
				dbHealth, dbErr := store.CheckHealth(cmd.Context())
				report.Database = dbHealth
				if dbErr == nil {
					summary, err := store.Health(cmd.Context())
					if err != nil {
						return err
					}
					report.Jobs = summary
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", dbHealth.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(dbHealth.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(dbHealth.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", dbHealth.SchemaVersion)
				if dbErr != nil {
					fmt.Fprintf(out, "Error: %v\n", dbErr)
					return nil
				}
				fmt.Fprintf(out, "Total jobs: %d (queued %d, active %d, complete %d, error %d, cancelled %d)\n",
					report.Jobs.Total,
					report.Jobs.Queued,
					report.Jobs.Active,
					report.Jobs.Complete,
					report.Jobs.Error,
					report.Jobs.Cancelled,
				)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished jobs (complete, error, cancelled) from the queue history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.PurgeFinished(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch removed {
				case 0:
					fmt.Fprintln(out, "No finished jobs to purge")
				case 1:
					fmt.Fprintln(out, "Purged 1 finished job")
				default:
					fmt.Fprintf(out, "Purged %d finished jobs\n", removed)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only purge jobs that finished at least this long ago (e.g. 168h)")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
