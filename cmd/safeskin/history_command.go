package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"safeskin/internal/domain"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your saved screening results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.restore(cmd.Context()); err != nil {
				return err
			}
			user := ctx.session.User()
			out := cmd.OutOrStdout()
			if user == nil {
				fmt.Fprintln(out, "Please log in to view your history.")
				return nil
			}

			store, closeStore, err := ctx.historyStore()
			if err != nil {
				return err
			}
			defer closeStore()

			items, err := store.ListByUser(cmd.Context(), user.UID)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No saved results yet.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				confidence := ""
				if item.Confidence != nil {
					confidence = domain.FormatConfidence(*item.Confidence)
				}
				rows = append(rows, []string{
					item.CreatedAt.Local().Format("2006-01-02 15:04"),
					item.Label,
					confidence,
					item.ImageURL,
				})
			}

			if isTerminal(out) {
				fmt.Fprintln(out, renderTable([]string{"Date", "Label", "Confidence", "Image"}, rows))
			} else {
				fmt.Fprint(out, renderPlain(rows))
			}
			return nil
		},
	}
}
