package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Bhargav65/Silent-Byte/internal/ui"
	"github.com/Bhargav65/Silent-Byte/internal/version"
)

var (
	flagDomain   string
	flagSTUN     string
	flagInsecure bool
)

var rootCmd = &cobra.Command{
	Use:   "silentbyte",
	Short: "Private two-party sessions over a direct peer-to-peer link",
	Long: `SilentByte pairs two clients into a private room identified by a short
code, relays the WebRTC handshake between them, and then talks directly
peer to peer. Sessions survive transient network drops on either side.`,
	Version: version.Version,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "signaling server domain")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "fallback STUN server URL")
	rootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "use ws:// and http:// (local development)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(joinCmd)

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
