package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/registry"
	"github.com/Bhargav65/Silent-Byte/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <code>",
	Aliases: []string{"j"},
	Short:   "Join an existing room by code",
	Long: `Join a room someone else created, using the code they shared.

Examples:
  silentbyte join AB12C3
  silentbyte join AB12C3 --domain localhost:8080 --insecure`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		if !registry.ValidCode(code) {
			return fmt.Errorf("invalid room code %q: expected 6 alphanumeric characters", code)
		}

		cfg := config.LoadClient(config.Options{
			Domain:     flagDomain,
			STUNServer: flagSTUN,
			Insecure:   flagInsecure,
		})

		ui.PrintTitle("SilentByte")
		return runSession(cfg, code, model.RoleResponder)
	},
}
