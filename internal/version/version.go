package version

// Version is the current version of signalmaster.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Joe8Bit/webrtc-workshop/internal/version.Version=v1.0.0'"
var Version = "dev"
