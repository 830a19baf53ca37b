package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/assignment-engine/internal/bootstrap"
	"github.com/spec-kit/assignment-engine/internal/domain"
)

var retryCmd = &cobra.Command{
	Use:   "retry [notification-id]",
	Short: "Retry one failed notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			record, err := c.Notifications.Retry(ctx, args[0])
			if err != nil {
				return err
			}
			return printNotifications([]domain.FailedNotification{*record})
		})
	},
}

var retryAllCmd = &cobra.Command{
	Use:   "retry-all",
	Short: "Retry every pending notification once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			summary, err := c.Notifications.RetryAllPending(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("total=%d succeeded=%d failed=%d remaining_pending=%d\n",
				summary.Total, summary.Succeeded, summary.Failed, summary.RemainingPending)
			return nil
		})
	},
}

var reenableCmd = &cobra.Command{
	Use:   "reenable [notification-id]",
	Short: "Reset a failed notification to pending with a fresh retry budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			record, err := c.Notifications.Reenable(ctx, args[0])
			if err != nil {
				return err
			}
			return printNotifications([]domain.FailedNotification{*record})
		})
	},
}

var (
	failedStatus string
	failedLimit  int
	failedOffset int
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List failed notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var status *domain.NotificationStatus
		if failedStatus != "" {
			s := domain.NotificationStatus(failedStatus)
			switch s {
			case domain.NotificationPending, domain.NotificationRetrying, domain.NotificationFailed, domain.NotificationSuccess:
			default:
				return fmt.Errorf("unknown status %q", failedStatus)
			}
			status = &s
		}
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			records, err := c.Notifications.ListFailed(ctx, status, failedLimit, failedOffset)
			if err != nil {
				return err
			}
			return printNotifications(records)
		})
	},
}

func init() {
	failedCmd.Flags().StringVar(&failedStatus, "status", "", "Filter by status (pending, retrying, failed, success)")
	failedCmd.Flags().IntVar(&failedLimit, "limit", 50, "Maximum records to list")
	failedCmd.Flags().IntVar(&failedOffset, "offset", 0, "Records to skip")
}

func printNotifications(records []domain.FailedNotification) error {
	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(records)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tUSER\tSTATUS\tRETRIES\tCREATED\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID, r.Kind, r.UserID, r.Status, r.RetryCount, r.MaxRetries,
			r.CreatedAt.Format(time.RFC3339), truncate(r.ErrorMessage, 60))
	}
	return w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
