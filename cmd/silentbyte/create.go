package main

import (
	"crypto/rand"
	"log"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/ui"
)

var flagCode string

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room and wait for a peer",
	Long: `Create a new room as the initiator and print its code. Share the code
with the other side; the session starts when they join.

Examples:
  silentbyte create
  silentbyte create --code AB12C3
  silentbyte create --domain localhost:8080 --insecure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code := flagCode
		if code == "" {
			code = randomCode()
		}

		cfg := config.LoadClient(config.Options{
			Domain:     flagDomain,
			STUNServer: flagSTUN,
			Insecure:   flagInsecure,
		})

		ui.PrintTitle("SilentByte")
		ui.PrintRoomCode(code)
		return runSession(cfg, code, model.RoleInitiator)
	},
}

func init() {
	createCmd.Flags().StringVar(&flagCode, "code", "", "room code to use (random when omitted)")
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// randomCode generates a 6-character alphanumeric room code, skipping
// easily confused characters.
func randomCode() string {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			log.Panic("failed to generate room code:", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code)
}
