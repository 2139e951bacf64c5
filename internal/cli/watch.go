package cli

import (
	"encoding/json"
	"os"

	"classquiz-service/internal/client"
	"github.com/spf13/cobra"
)

// NewWatchCmd follows a live room and prints every message as a JSON line.
func NewWatchCmd() *cobra.Command {
	var cfg client.Config
	var untilStopped bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a live room and print its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			return client.New(cfg).Run(cmd.Context(), func(msg client.Message) error {
				if err := enc.Encode(msg); err != nil {
					return err
				}
				if untilStopped && msg.Type == "quiz-stopped" {
					return client.ErrDone
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "ws://localhost:8080/ws", "websocket endpoint")
	cmd.Flags().StringVar(&cfg.RoomCode, "room", "", "room code")
	cmd.Flags().StringVar(&cfg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&cfg.Email, "email", "", "email, used to recognise reconnects")
	cmd.Flags().StringVar(&cfg.Role, "role", "", "TEACHER to join as host")
	cmd.Flags().StringVar(&cfg.HostKey, "host-key", "", "host key returned when the room was created")
	cmd.Flags().Uint64Var(&cfg.MaxRetries, "max-retries", 5, "consecutive reconnect attempts before giving up")
	cmd.Flags().BoolVar(&untilStopped, "until-stopped", true, "exit when the quiz stops")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}
