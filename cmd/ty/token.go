package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an API bearer token for a user",
		Long:  "Signs a bearer token for an existing user with the configured auth secret. The token carries the user's stored role.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, args[0], ttl)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Taskyard config file")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, userID string, ttl time.Duration) error {
	s, err := openStack(configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	caller, err := s.callerFor(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.cfg.Auth.TokenTTL
	}
	token, err := s.jwt().Issue(caller.UserID, caller.Role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
