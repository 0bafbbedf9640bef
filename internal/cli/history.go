package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/autoreply/internal/model"
	"github.com/nhle/autoreply/internal/store"
	"github.com/nhle/autoreply/internal/theme"
)

func historyCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently handled messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(opts.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			filter := store.ReplyFilter{Limit: limit}
			if status != "" {
				switch status {
				case model.ReplyStatusSent, model.ReplyStatusFailed, model.ReplyStatusDryRun:
					filter.Status = &status
				default:
					return fmt.Errorf("unknown status %q", status)
				}
			}

			replies, err := s.ListReplies(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(replies) == 0 {
				fmt.Fprintln(out, "No replies recorded.")
				return nil
			}

			for _, r := range replies {
				fmt.Fprintf(out, "%s  %s  %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					theme.StatusStyle(r.Status).Render(fmt.Sprintf("%-7s", r.Status)),
					r.Sender,
				)
				fmt.Fprintf(out, "    %s %s\n", theme.LabelStyle.Render("Subject:"), r.Subject)
				switch {
				case r.Summary != "":
					fmt.Fprintf(out, "    %s %s\n", theme.LabelStyle.Render("Summary:"), r.Summary)
				case r.SummaryError != "":
					fmt.Fprintln(out, "    "+theme.WarningStyle.Render("no summary: "+r.SummaryError))
				}
				if r.Error != "" {
					fmt.Fprintln(out, "    "+theme.ErrorStyle.Render(r.Error))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	cmd.Flags().StringVar(&status, "status", "", "only show sent, failed or dry_run entries")
	return cmd
}
