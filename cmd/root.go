package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Joe8Bit/webrtc-workshop/internal/logging"
	"github.com/Joe8Bit/webrtc-workshop/internal/ui"
	"github.com/Joe8Bit/webrtc-workshop/internal/version"
)

var flagLogLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signalmaster",
	Short: "WebRTC signaling relay with room membership",
	Long: `signalmaster relays signaling messages between WebRTC peers over WebSocket.
Peers join named rooms, learn who else is present, and exchange offers,
answers and ICE candidates addressed by connection id.

The serve command runs the relay. join, send and call are peer-side tools
that speak the same protocol.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The relay logs its traffic; peer tools stay quiet unless asked.
		def := slog.LevelError
		if cmd.Name() == "serve" {
			def = slog.LevelInfo
		}
		logging.Init(def, flagLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
