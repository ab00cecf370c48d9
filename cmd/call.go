package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joe8Bit/webrtc-workshop/internal/client"
	"github.com/Joe8Bit/webrtc-workshop/internal/config"
	"github.com/Joe8Bit/webrtc-workshop/internal/peer"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
	"github.com/Joe8Bit/webrtc-workshop/internal/ui"
)

var (
	flagScreen bool
	flagVideo  bool
	flagAudio  bool
)

var callCmd = &cobra.Command{
	Use:   "call <room>",
	Short: "Open WebRTC data channels to everyone in a room",
	Long: `Join a room as a WebRTC peer. An offer goes to every member already present,
offers from later arrivals are answered, and ICE candidates trickle through the
relay. Once a data channel opens both sides exchange a hello carrying their
capabilities.

Examples:
  signalmaster call lobby
  signalmaster call --screen --audio lobby`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callRoom(cmd.Context(), args[0], signaling.Capabilities{
			Screen: flagScreen,
			Video:  flagVideo,
			Audio:  flagAudio,
		})
	},
}

func init() {
	f := callCmd.Flags()
	f.StringVar(&flagURL, "url", "", "Relay WebSocket URL (env: SIGNAL_URL)")
	f.BoolVar(&flagScreen, "screen", false, "Announce screen sharing in the hello")
	f.BoolVar(&flagVideo, "video", true, "Announce video in the hello")
	f.BoolVar(&flagAudio, "audio", false, "Announce audio in the hello")
	rootCmd.AddCommand(callCmd)
}

func callRoom(ctx context.Context, room string, caps signaling.Capabilities) error {
	cc, err := NewConnectionContext(ctx, flagURL)
	if err != nil {
		return err
	}
	defer cc.Close()

	urls := make([]string, 0, len(cc.STUNServers))
	for _, s := range cc.STUNServers {
		urls = append(urls, s.URL)
	}

	mgr := peer.NewManager(peer.Options{
		Self:         cc.Self,
		Capabilities: caps,
		ICEServers:   config.ICEServersFromURLs(urls),
		Signaler:     cc.Client,
	})
	defer mgr.Close()

	snap, err := cc.JoinRoom(ctx, room)
	if err != nil {
		return err
	}

	for id := range snap {
		if id == cc.Self {
			continue
		}
		if err := mgr.Call(ctx, id); err != nil {
			ui.PrintWarningf("Could not call %s: %v", id, err)
		}
	}

	ui.PrintInfo(ui.MutedStyle.Render("Waiting for peers, Ctrl+C to leave"))

	for {
		select {
		case ev, ok := <-cc.Client.Events():
			if !ok {
				return client.NewError("call", client.ErrServerClosed)
			}
			handleCallEvent(ctx, cc, mgr, ev)

		case pev := <-mgr.Events():
			printPeerEvent(pev)

		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			return cc.Client.Leave(leaveCtx)
		}
	}
}

func handleCallEvent(ctx context.Context, cc *ConnectionContext, mgr *peer.Manager, ev client.Event) {
	switch {
	case cc.isSelfRemoval(ev):
	case ev.Type == client.EventRemove:
		mgr.Remove(ev.Removed)
	case ev.Type == client.EventMessage:
		err := mgr.HandleMessage(ctx, ev.Envelope)
		if errors.Is(err, peer.ErrUnexpectedSignal) {
			slog.Debug("ignoring relayed message", "from", ev.Envelope.From, "error", err)
		} else if err != nil {
			ui.PrintWarningf("Signal from %s failed: %v", ev.Envelope.From, err)
		}
	}
}

func printPeerEvent(ev peer.Event) {
	switch ev.Kind {
	case peer.EventOpen:
		ui.PrintInfof("%s Data channel open with %s", ui.IconConnect, ev.Peer)
	case peer.EventHello:
		ui.PrintSuccessf("Hello from %s (screen=%t video=%t audio=%t)",
			ui.BoldStyle.Render(ev.Hello.ID), ev.Hello.Screen, ev.Hello.Video, ev.Hello.Audio)
	case peer.EventClosed:
		ui.PrintWarning(fmt.Sprintf("%s %s disconnected", ui.IconLeave, ev.Peer))
	}
}
