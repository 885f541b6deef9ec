package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"safeskin/internal/auth"
)

func newSignupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email> <password>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.client.SignUp(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. You are now signed in.\n", user.Email)
			return nil
		},
	}
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var google bool

	cmd := &cobra.Command{
		Use:   "login [<email> <password>]",
		Short: "Sign in with email and password, or with Google",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if google {
				user, err := ctx.client.SignInWithProvider(cmd.Context(), "google.com")
				if err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				if user == nil {
					// The user backed out of the provider flow.
					fmt.Fprintln(cmd.OutOrStdout(), "Sign-in cancelled.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user.Email)
				return nil
			}

			if len(args) != 2 {
				return errors.New("login requires <email> <password>, or --google")
			}
			user, err := ctx.client.SignIn(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredentials) {
					return errors.New("invalid email or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user.Email)
			return nil
		},
	}

	cmd.Flags().BoolVar(&google, "google", false, "Sign in with a Google account")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.session.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.restore(cmd.Context()); err != nil {
				return err
			}
			user := ctx.session.User()
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (uid %s)\n", user.Email, user.UID)
			return nil
		},
	}
}
