package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	blinkchat "github.com/blinkchat/blinkchat-go"
	"github.com/spf13/cobra"
)

var sendWait time.Duration

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendWait, "wait", 5*time.Second, "how long to wait for the broadcast echo")
}

var sendCmd = &cobra.Command{
	Use:   "send <roomID> <text...>",
	Short: "Send a message to a room",
	Long:  "Send a message over the push channel and wait for its broadcast echo,\nwhich is the only delivery confirmation the protocol provides.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := args[0]
		text := strings.Join(args[1:], " ")

		client, cfg := getClient()
		log := newLogger()

		channel := blinkchat.NewChannelClient(client.ChannelURL(cfg.Auth.Token), &blinkchat.ChannelConfig{
			AutoReconnect: false,
			Logger:        log,
		})

		echoed := make(chan blinkchat.Message, 1)
		channel.OnMessage(func(msg blinkchat.Message) {
			if msg.RoomID == roomID && msg.Text == text {
				select {
				case echoed <- msg:
				default:
				}
			}
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), sendWait+10*time.Second)
		defer cancel()

		if err := channel.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer channel.Disconnect()

		if err := channel.JoinRoom(ctx, roomID); err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}
		if err := channel.SendMessage(ctx, roomID, text); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		select {
		case msg := <-echoed:
			fmt.Printf("Delivered at %s\n", msg.CreatedAt.Local().Format("15:04:05"))
		case <-time.After(sendWait):
			fmt.Println("Sent (no echo received before timeout).")
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	},
}
