package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <roomID>",
	Short: "Tail a room's message log live",
	Long:  "Load the room's history, then stream live messages until interrupted.\nMessages from the current session are marked with '*'.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := args[0]
		engine, _ := getEngine()
		ctx := cmd.Context()

		if err := engine.Start(ctx); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		defer engine.Stop()

		if err := engine.OpenRoom(ctx, roomID); err != nil {
			return fmt.Errorf("failed to open room: %w", err)
		}

		room, _ := engine.Directory().Get(roomID)
		fmt.Printf("── %s ──\n", room.Name)

		printed := 0
		printNew := func() {
			msgs := engine.Store().List(roomID)
			for _, msg := range msgs[printed:] {
				marker := " "
				if engine.IsMine(msg) {
					marker = "*"
				}
				fmt.Printf("%s %s [%s] %s\n",
					marker,
					msg.CreatedAt.Local().Format("15:04:05"),
					msg.AuthorName,
					msg.Text,
				)
			}
			printed = len(msgs)
		}
		printNew()

		// Poll the store rather than hooking the channel directly: the engine
		// owns dedup and ordering, the CLI only mirrors the store.
		refresh := make(chan os.Signal, 1)
		signal.Notify(refresh, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-refresh:
				engine.CloseRoom()
				fmt.Println()
				return nil
			case <-ticker.C:
				printNew()
			case <-ctx.Done():
				engine.CloseRoom()
				return nil
			}
		}
	},
}
