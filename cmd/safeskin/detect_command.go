package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"safeskin/internal/domain"
	"safeskin/internal/history"
	"safeskin/internal/storage"
	"safeskin/internal/workflow"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Run a skin photo through the screening backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(ctx, cmd, args[0], save)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Save the result to your history (requires login)")
	return cmd
}

func runDetect(ctx *commandContext, cmd *cobra.Command, imagePath string, save bool) error {
	var objects *storage.Client
	var store history.Store

	if save {
		if err := ctx.restore(cmd.Context()); err != nil {
			return err
		}
		objects = storage.NewClient(ctx.cfg.ProjectURL, ctx.cfg.ProjectAPIKey)
		s, closeStore, err := ctx.historyStore()
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	w := workflow.New(ctx.cfg.ProxyURL, objects, ctx.cfg.StorageBucket, store, ctx.session)
	defer w.Close()

	if err := w.SelectFile(imagePath); err != nil {
		return err
	}
	if err := w.Detect(cmd.Context()); err != nil {
		return err
	}

	result := w.Result()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Label:      %s\n", result.Label)
	fmt.Fprintf(out, "Confidence: %s\n", domain.FormatConfidence(result.Confidence))
	if !domain.IsBenign(result.Label) {
		fmt.Fprintln(out, "This result may need medical attention.")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Details)

	if save {
		if err := w.SaveToHistory(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(out, w.SaveMessage())
	}
	return nil
}
