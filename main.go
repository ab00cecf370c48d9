package main

import "github.com/Joe8Bit/webrtc-workshop/cmd"

func main() {
	cmd.Execute()
}
