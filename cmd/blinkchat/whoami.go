package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity behind the current session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		identity, err := client.Me(ctx)
		if err != nil {
			return fmt.Errorf("identity lookup failed: %w", err)
		}
		if identity == nil {
			fmt.Println("Not authenticated.")
			return nil
		}
		fmt.Printf("%s (%s)\n", identity.UserName, identity.ID)
		return nil
	},
}
