package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tucoflyer/botclient/internal/protocol"
)

var (
	digestKey string
	digestHex bool
)

var digestCmd = &cobra.Command{
	Use:   "digest <challenge>",
	Short: "Compute the authentication digest for a challenge",
	Long: `Print Base64(HMAC-SHA512(challenge, key)), the value the client sends in
reply to an Auth challenge. Useful when checking a bot's key by hand.`,
	Example: `  botclient digest --key s3cret 'challenge text'
  botclient digest --key s3cret --hex 0102ff`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if digestKey == "" {
			return fmt.Errorf("--key is required")
		}
		challenge := []byte(args[0])
		if digestHex {
			var err error
			if challenge, err = hex.DecodeString(args[0]); err != nil {
				return fmt.Errorf("invalid hex challenge: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), protocol.Digest(challenge, digestKey))
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestKey, "key", "", "Shared key")
	digestCmd.Flags().BoolVar(&digestHex, "hex", false, "Challenge is hex-encoded bytes")
}
