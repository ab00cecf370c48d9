package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
	"github.com/Joe8Bit/webrtc-workshop/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:     "send <room> <to> <json>",
	Aliases: []string{"s"},
	Short:   "Relay one message to a connection",
	Long: `Join a room and relay a JSON object to another connection. The object is
delivered as is, with "to" set from the argument and "from" stamped by the
server.

Examples:
  signalmaster send lobby 3f1c... '{"type":"offer","payload":{"sdp":"v=0"}}'`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[2])) {
			return fmt.Errorf("message is not valid JSON")
		}
		return sendMessage(cmd.Context(), args[0], signaling.ConnectionID(args[1]), json.RawMessage(args[2]))
	},
}

func init() {
	sendCmd.Flags().StringVar(&flagURL, "url", "", "Relay WebSocket URL (env: SIGNAL_URL)")
	rootCmd.AddCommand(sendCmd)
}

func sendMessage(ctx context.Context, room string, to signaling.ConnectionID, raw json.RawMessage) error {
	cc, err := NewConnectionContext(ctx, flagURL)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.JoinRoom(ctx, room); err != nil {
		return err
	}

	sp := ui.NewSpinner("Relaying message...").Start()
	if err := cc.Client.SendRaw(ctx, to, raw); err != nil {
		sp.Error("Relay failed")
		return err
	}
	if err := cc.Client.Leave(ctx); err != nil {
		sp.Error("Leave failed")
		return err
	}
	sp.Success(fmt.Sprintf("Sent to %s", ui.BoldStyle.Render(string(to))))
	return nil
}
