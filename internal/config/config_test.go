package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envListenAddr, envSTUNServers, envAllowedOrigins, envMaxMessageBytes,
		envMaxMessagesPerSecond, envSendQueueSize, envShutdownTimeout, envSignalURL,
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr=%q", cfg.ListenAddr)
	}
	if len(cfg.STUNServers) != 1 || cfg.STUNServers[0] != DefaultSTUN {
		t.Fatalf("STUNServers=%v", cfg.STUNServers)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("AllowedOrigins=%v, want nil", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes || cfg.SendQueueSize != DefaultSendQueueSize {
		t.Fatalf("limits=%d/%d", cfg.MaxMessageBytes, cfg.SendQueueSize)
	}
	if cfg.MaxMessagesPerSecond != 0 {
		t.Fatalf("MaxMessagesPerSecond=%v", cfg.MaxMessagesPerSecond)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("ShutdownTimeout=%s", cfg.ShutdownTimeout)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, "127.0.0.1:9000")
	t.Setenv(envSTUNServers, "stun:a.example:3478, stun:b.example:3478,")
	t.Setenv(envAllowedOrigins, "https://app.example")
	t.Setenv(envMaxMessagesPerSecond, "25")
	t.Setenv(envShutdownTimeout, "3s")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("ListenAddr=%q", cfg.ListenAddr)
	}
	if strings.Join(cfg.STUNServers, "|") != "stun:a.example:3478|stun:b.example:3478" {
		t.Fatalf("STUNServers=%v", cfg.STUNServers)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("AllowedOrigins=%v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessagesPerSecond != 25 {
		t.Fatalf("MaxMessagesPerSecond=%v", cfg.MaxMessagesPerSecond)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("ShutdownTimeout=%s", cfg.ShutdownTimeout)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, "127.0.0.1:9000")
	t.Setenv(envSTUNServers, "stun:env.example:3478")
	t.Setenv(envSendQueueSize, "8")

	cfg, err := Load(Options{
		ListenAddr:    ":7000",
		STUNServers:   []string{"stun:flag.example:3478"},
		SendQueueSize: 16,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Fatalf("ListenAddr=%q", cfg.ListenAddr)
	}
	if cfg.STUNServers[0] != "stun:flag.example:3478" {
		t.Fatalf("STUNServers=%v", cfg.STUNServers)
	}
	if cfg.SendQueueSize != 16 {
		t.Fatalf("SendQueueSize=%d", cfg.SendQueueSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		opts Options
	}{
		{name: "bad stun scheme", opts: Options{STUNServers: []string{"turn:relay.example"}}},
		{name: "bad message bytes", env: map[string]string{envMaxMessageBytes: "lots"}},
		{name: "negative message bytes", opts: Options{MaxMessageBytes: -1}},
		{name: "negative rate", opts: Options{MaxMessagesPerSecond: -2}},
		{name: "bad duration", env: map[string]string{envShutdownTimeout: "soon"}},
		{name: "zero queue", env: map[string]string{envSendQueueSize: "0"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tc.opts); err == nil {
				t.Fatalf("Load succeeded, want error")
			}
		})
	}
}

func TestICEServers(t *testing.T) {
	cfg := &Config{STUNServers: []string{"stun:a:1", "stun:b:2"}}
	servers := cfg.ICEServers()
	if len(servers) != 1 || len(servers[0].URLs) != 2 || servers[0].URLs[1] != "stun:b:2" {
		t.Fatalf("ICEServers=%+v", servers)
	}
	if got := ICEServersFromURLs(nil); got != nil {
		t.Fatalf("ICEServersFromURLs(nil)=%v", got)
	}
}

func TestLoadPeer(t *testing.T) {
	tests := []struct {
		flag, env, want string
		wantErr         bool
	}{
		{want: DefaultSignalURL},
		{env: "wss://relay.example/ws", want: "wss://relay.example/ws"},
		{flag: "ws://flag.example:1234", env: "wss://relay.example/ws", want: "ws://flag.example:1234/ws"},
		{flag: "https://relay.example", want: "wss://relay.example/ws"},
		{flag: "ftp://relay.example", wantErr: true},
		{flag: "ws://", wantErr: true},
	}

	for _, tc := range tests {
		clearEnv(t)
		t.Setenv(envSignalURL, tc.env)

		cfg, err := LoadPeer(tc.flag)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("LoadPeer(%q) succeeded", tc.flag)
			}
			continue
		}
		if err != nil {
			t.Fatalf("LoadPeer(%q): %v", tc.flag, err)
		}
		if cfg.SignalURL != tc.want {
			t.Fatalf("LoadPeer(%q, env %q)=%q, want %q", tc.flag, tc.env, cfg.SignalURL, tc.want)
		}
	}
}
