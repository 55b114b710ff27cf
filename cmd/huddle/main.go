package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/huddle-dev/huddle/internal/ui"
	"github.com/huddle-dev/huddle/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "huddle",
	Short:   "Terminal video huddles over WebRTC",
	Long: `Huddle is a command-line conferencing tool. It connects participants in a
room directly over WebRTC: media and chat flow peer-to-peer, with a small
signaling server brokering the introductions.`,
	Version: version.Version,
}

func main() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
