package cmd

import (
	"context"
	"fmt"

	"github.com/Joe8Bit/webrtc-workshop/internal/client"
	"github.com/Joe8Bit/webrtc-workshop/internal/config"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
	"github.com/Joe8Bit/webrtc-workshop/internal/ui"
)

var flagURL string

// ConnectionContext bundles what every peer-side command needs once it is
// connected and knows its own id.
type ConnectionContext struct {
	Client      *client.Client
	Config      *config.PeerConfig
	Self        signaling.ConnectionID
	STUNServers []signaling.STUNServer
}

func NewConnectionContext(ctx context.Context, urlFlag string) (*ConnectionContext, error) {
	cfg, err := config.LoadPeer(urlFlag)
	if err != nil {
		return nil, err
	}

	stopSpinner := ui.RunConnectionSpinner(fmt.Sprintf("Connecting to %s...", cfg.SignalURL))
	defer stopSpinner()

	c := client.NewClient(cfg.SignalURL)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	stun, err := c.STUNServers(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	self, err := c.Identify(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	stopSpinner()

	return &ConnectionContext{
		Client:      c,
		Config:      cfg,
		Self:        self,
		STUNServers: stun,
	}, nil
}

// JoinRoom joins room and renders the snapshot.
func (c *ConnectionContext) JoinRoom(ctx context.Context, room string) (signaling.RoomSnapshot, error) {
	stopSpinner := ui.RunWaitingSpinner(fmt.Sprintf("Joining %s...", room))
	snap, err := c.Client.Join(ctx, room)
	stopSpinner()
	if err != nil {
		return nil, err
	}

	ui.PrintSuccessf("Joined %s as %s", ui.BoldStyle.Render(room), ui.BoldStyle.Render(string(c.Self)))
	ui.RenderRoomTable(snap, c.Self)
	return snap, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// isSelfRemoval reports the remove the server echoes back to a leaver.
func (c *ConnectionContext) isSelfRemoval(ev client.Event) bool {
	return ev.Type == client.EventRemove && ev.Removed == c.Self
}
