package main

import (
	"context"
	"fmt"
	"time"

	blinkchat "github.com/blinkchat/blinkchat-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <token>",
	Short: "Store a session token and verify it",
	Long:  "Save the session token to ~/.blinkchat/config.toml and resolve the identity it belongs to.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Auth.Token = token

		opts := []blinkchat.ClientOption{}
		if cfg.Default.BaseURL != "" {
			opts = append(opts, blinkchat.WithBaseURL(cfg.Default.BaseURL))
		}
		client := blinkchat.NewClient(token, opts...)

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		identity, err := client.Me(ctx)
		if err != nil {
			return fmt.Errorf("could not verify token: %w", err)
		}
		if identity == nil {
			return fmt.Errorf("token rejected: session is unauthenticated")
		}

		cfg.Auth.UserID = identity.ID
		cfg.Auth.UserName = identity.UserName
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Logged in as %s (%s)\n", identity.UserName, identity.ID)
		return nil
	},
}
