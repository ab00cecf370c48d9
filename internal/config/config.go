package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultListenAddr           = ":8888"
	DefaultSTUN                 = "stun:stun.l.google.com:19302"
	DefaultMaxMessageBytes      = 64 * 1024
	DefaultMaxMessagesPerSecond = 0
	DefaultSendQueueSize        = 256
	DefaultShutdownTimeout      = 10 * time.Second

	DefaultSignalURL = "ws://localhost:8888/ws"
)

const (
	envListenAddr           = "LISTEN_ADDR"
	envSTUNServers          = "STUN_SERVERS"
	envAllowedOrigins       = "ALLOWED_ORIGINS"
	envMaxMessageBytes      = "MAX_MESSAGE_BYTES"
	envMaxMessagesPerSecond = "MAX_MESSAGES_PER_SECOND"
	envSendQueueSize        = "SEND_QUEUE_SIZE"
	envShutdownTimeout      = "SHUTDOWN_TIMEOUT"

	envSignalURL = "SIGNAL_URL"
)

// Config holds the relay server configuration
type Config struct {
	// ListenAddr is the HTTP listen address
	ListenAddr string

	// STUNServers is pushed to every connection, in order
	STUNServers []string

	// AllowedOrigins restricts websocket upgrades. Empty allows all.
	AllowedOrigins []string

	MaxMessageBytes      int64
	MaxMessagesPerSecond float64
	SendQueueSize        int
	ShutdownTimeout      time.Duration
}

// Options for loading config with CLI flag overrides.
// Zero values mean "not set".
type Options struct {
	ListenAddr           string
	STUNServers          []string
	AllowedOrigins       []string
	MaxMessageBytes      int64
	MaxMessagesPerSecond float64
	SendQueueSize        int
	ShutdownTimeout      time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ListenAddr:           firstString(opts.ListenAddr, os.Getenv(envListenAddr), DefaultListenAddr),
		STUNServers:          firstList(opts.STUNServers, splitList(os.Getenv(envSTUNServers)), []string{DefaultSTUN}),
		AllowedOrigins:       firstList(opts.AllowedOrigins, splitList(os.Getenv(envAllowedOrigins)), nil),
		MaxMessageBytes:      opts.MaxMessageBytes,
		MaxMessagesPerSecond: opts.MaxMessagesPerSecond,
		SendQueueSize:        opts.SendQueueSize,
		ShutdownTimeout:      opts.ShutdownTimeout,
	}

	var err error
	if cfg.MaxMessageBytes == 0 {
		if cfg.MaxMessageBytes, err = envInt64(envMaxMessageBytes, DefaultMaxMessageBytes); err != nil {
			return nil, err
		}
	}
	if cfg.MaxMessagesPerSecond == 0 {
		if cfg.MaxMessagesPerSecond, err = envFloat(envMaxMessagesPerSecond, DefaultMaxMessagesPerSecond); err != nil {
			return nil, err
		}
	}
	if cfg.SendQueueSize == 0 {
		n, err := envInt64(envSendQueueSize, DefaultSendQueueSize)
		if err != nil {
			return nil, err
		}
		cfg.SendQueueSize = int(n)
	}
	if cfg.ShutdownTimeout == 0 {
		if cfg.ShutdownTimeout, err = envDuration(envShutdownTimeout, DefaultShutdownTimeout); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is empty")
	}
	for _, s := range c.STUNServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "stuns:") {
			return fmt.Errorf("invalid STUN server %q: must start with stun: or stuns:", s)
		}
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max message bytes must be positive, got %d", c.MaxMessageBytes)
	}
	if c.MaxMessagesPerSecond < 0 {
		return fmt.Errorf("max messages per second must not be negative, got %v", c.MaxMessagesPerSecond)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive, got %d", c.SendQueueSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// ICEServers converts the STUN list into pion ICE servers.
func (c *Config) ICEServers() []webrtc.ICEServer {
	return ICEServersFromURLs(c.STUNServers)
}

// ICEServersFromURLs builds one pion ICE server entry holding every URL.
func ICEServersFromURLs(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: append([]string(nil), urls...)}}
}

// PeerConfig holds configuration for the peer-side commands.
type PeerConfig struct {
	// SignalURL is the websocket endpoint of the relay
	SignalURL string
}

// LoadPeer resolves the relay URL: flag > SIGNAL_URL > default.
func LoadPeer(signalURL string) (*PeerConfig, error) {
	raw := firstString(signalURL, os.Getenv(envSignalURL), DefaultSignalURL)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid signal URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid signal URL %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid signal URL %q: missing host", raw)
	}
	if u.Path == "" {
		u.Path = "/ws"
	}

	return &PeerConfig{SignalURL: u.String()}, nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstList(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
