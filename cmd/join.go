package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joe8Bit/webrtc-workshop/internal/client"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
	"github.com/Joe8Bit/webrtc-workshop/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room and watch its traffic",
	Long: `Join a room, print the STUN servers and current members, then show peers
leaving and messages addressed to this connection until q is pressed.

Examples:
  signalmaster join lobby
  signalmaster join --url wss://signal.example.com/ws lobby`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context(), args[0])
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagURL, "url", "", "Relay WebSocket URL (env: SIGNAL_URL)")
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(ctx context.Context, room string) error {
	cc, err := NewConnectionContext(ctx, flagURL)
	if err != nil {
		return err
	}
	defer cc.Close()

	fmt.Println()
	ui.RenderSTUNServers(cc.STUNServers)

	snap, err := cc.JoinRoom(ctx, room)
	if err != nil {
		return err
	}

	updates := make(chan ui.RoomEvent, 16)
	go forwardRoomEvents(ctx, cc, updates)

	if err := ui.RunRoomView(ui.NewRoomModel(room, cc.Self, snap, updates)); err != nil {
		return err
	}

	leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	return cc.Client.Leave(leaveCtx)
}

// forwardRoomEvents translates client events for the live view and closes
// updates when the connection ends.
func forwardRoomEvents(ctx context.Context, cc *ConnectionContext, updates chan<- ui.RoomEvent) {
	defer close(updates)
	for {
		select {
		case ev, ok := <-cc.Client.Events():
			if !ok {
				return
			}
			if cc.isSelfRemoval(ev) {
				continue
			}
			select {
			case updates <- toRoomEvent(ev):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func toRoomEvent(ev client.Event) ui.RoomEvent {
	switch ev.Type {
	case client.EventRemove:
		return ui.RoomEvent{Kind: ui.RoomEventRemoved, Peer: ev.Removed, At: time.Now()}
	default:
		return ui.RoomEvent{
			Kind:   ui.RoomEventMessage,
			Peer:   ev.Envelope.From,
			Detail: summarize(ev.Envelope),
			At:     time.Now(),
		}
	}
}

// summarize names a relayed message by its "type" field when it has one.
func summarize(env *signaling.Envelope) string {
	raw, ok := env.Field("type")
	if !ok {
		return "message"
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil || typ == "" {
		return string(raw)
	}
	return typ
}
