package main

import (
	"context"

	"github.com/spf13/cobra"

	"safeskin/internal/auth"
	"safeskin/internal/config"
	"safeskin/internal/history"
	"safeskin/internal/httpx"
)

// commandContext carries the lazily built shared state every subcommand
// needs: configuration, the identity client and its session view.
type commandContext struct {
	cfg     config.Config
	client  *auth.Client
	session *auth.Session
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) init() {
	c.cfg = config.LoadConfig()
	httpx.ConfigureExternalHTTPClient(c.cfg.ExternalHTTPTimeoutSeconds)
	c.client = auth.NewClient(c.cfg.AuthURL, c.cfg.AuthAPIKey, c.cfg.CredentialsPath)
	c.session = auth.NewSession(c.client)
	c.session.Start()
}

// restore replays persisted credentials so the session reflects any prior
// login before the command runs.
func (c *commandContext) restore(ctx context.Context) error {
	return c.client.Restore(ctx)
}

func (c *commandContext) historyStore() (history.Store, func(), error) {
	if c.cfg.HistoryBackend == "sqlite" {
		db, err := history.InitDB(c.cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return history.NewSQLiteStore(db), func() { db.Close() }, nil
	}
	return history.NewRESTStore(c.cfg.ProjectURL, c.cfg.ProjectAPIKey, c.cfg.HistoryTable), func() {}, nil
}

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "safeskin",
		Short:         "Skin lesion screening from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newSignupCommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newLogoutCommand(ctx))
	rootCmd.AddCommand(newWhoamiCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
