package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joe8Bit/webrtc-workshop/internal/config"
	"github.com/Joe8Bit/webrtc-workshop/internal/metrics"
	"github.com/Joe8Bit/webrtc-workshop/internal/server"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
	"github.com/Joe8Bit/webrtc-workshop/internal/version"
)

var (
	flagListen          string
	flagSTUNServers     []string
	flagAllowedOrigins  []string
	flagMaxMessageBytes int64
	flagMaxMessageRate  float64
	flagSendQueueSize   int
	flagShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay. Clients connect over WebSocket at /ws; /health and
/metrics report state.

Examples:
  signalmaster serve
  signalmaster serve --listen :9000 --stun stun:stun.example.com:3478
  STUN_SERVERS=stun:a:3478,stun:b:3478 signalmaster serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ListenAddr:           flagListen,
			STUNServers:          flagSTUNServers,
			AllowedOrigins:       flagAllowedOrigins,
			MaxMessageBytes:      flagMaxMessageBytes,
			MaxMessagesPerSecond: flagMaxMessageRate,
			SendQueueSize:        flagSendQueueSize,
			ShutdownTimeout:      flagShutdownTimeout,
		})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&flagListen, "listen", "", "HTTP listen address (env: LISTEN_ADDR, default "+config.DefaultListenAddr+")")
	f.StringSliceVar(&flagSTUNServers, "stun", nil, "STUN server URLs pushed to peers, in order (env: STUN_SERVERS)")
	f.StringSliceVar(&flagAllowedOrigins, "allowed-origin", nil, "Allowed WebSocket origins, empty allows all (env: ALLOWED_ORIGINS)")
	f.Int64Var(&flagMaxMessageBytes, "max-message-bytes", 0, "Largest inbound frame in bytes (env: MAX_MESSAGE_BYTES)")
	f.Float64Var(&flagMaxMessageRate, "max-messages-per-second", 0, "Per-connection inbound frame rate, 0 is unlimited (env: MAX_MESSAGES_PER_SECOND)")
	f.IntVar(&flagSendQueueSize, "send-queue-size", 0, "Outbound frames buffered per connection (env: SEND_QUEUE_SIZE)")
	f.DurationVar(&flagShutdownTimeout, "shutdown-timeout", 0, "Grace period for open connections on shutdown (env: SHUTDOWN_TIMEOUT)")

	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	hub := signaling.NewHub(signaling.HubOptions{
		STUNServers: cfg.STUNServers,
		Metrics:     m,
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewMux(hub, cfg, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting signaling server",
			"addr", cfg.ListenAddr,
			"version", version.Version,
			"stun_servers", cfg.STUNServers,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stopping the hub sends every client a close frame so Shutdown does
	// not wait on idle websockets.
	stopHub()
	<-hub.Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown incomplete", "error", err)
		return srv.Close()
	}
	return nil
}
