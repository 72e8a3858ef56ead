package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	roomsJSONOutput bool
	roomsFilter     string
)

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.AddCommand(roomsListCmd)
	roomsCmd.AddCommand(roomsShowCmd)

	roomsListCmd.Flags().BoolVar(&roomsJSONOutput, "json", false, "output raw JSON")
	roomsListCmd.Flags().StringVar(&roomsFilter, "filter", "", "filter rooms by name substring")
	roomsShowCmd.Flags().BoolVar(&roomsJSONOutput, "json", false, "output raw JSON")
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Inspect joined rooms",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List joined rooms in recency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		rooms, err := client.JoinedRooms(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch rooms: %w", err)
		}

		if roomsFilter != "" {
			filtered := rooms[:0]
			for _, r := range rooms {
				if containsFold(r.Name, roomsFilter) {
					filtered = append(filtered, r)
				}
			}
			rooms = filtered
		}

		if roomsJSONOutput {
			return printJSON(rooms)
		}

		if len(rooms) == 0 {
			fmt.Println("No rooms joined.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLAST MESSAGE\tAT")
		for _, r := range rooms {
			at := ""
			if !r.LastMessageAt.IsZero() {
				at = r.LastMessageAt.Local().Format("Jan 2 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, truncate(r.LastMessage, 40), at)
		}
		return w.Flush()
	},
}

var roomsShowCmd = &cobra.Command{
	Use:   "show <roomID>",
	Short: "Show full room details, including members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		details, err := client.RoomDetails(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch room: %w", err)
		}

		if roomsJSONOutput {
			return printJSON(details)
		}

		fmt.Printf("%s (%s)\n", details.Name, details.ID)
		if details.Description != "" {
			fmt.Printf("  %s\n", details.Description)
		}
		fmt.Printf("  %d member(s)\n", len(details.Members))
		for _, m := range details.Members {
			fmt.Printf("    - %s (%s)\n", m.UserName, m.ID)
		}
		return nil
	},
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
