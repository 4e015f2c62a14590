package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/cip/client"
	"github.com/tturner/cipstack/internal/cip/connection"
)

func newConnectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Open a CIP connection, print the negotiated parameters and close it",
		Long: `Sends Large Forward Open, falling back to Forward Open when the target
rejects it, prints the connection IDs, sizes and timeout, then sends
Forward Close.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withClient(cmd, flags, func(_ *client.Client, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				if err := s.conn.Connect(ctx); err != nil {
					return err
				}
				renderPanel(cmd.OutOrStdout(), "Connection "+s.cfg.Address(), sessionRows(s.conn.Info()))
				return nil
			})
		},
	}
}

func sessionRows(info connection.SessionInfo) []row {
	forwardOpen := "Forward Open"
	if info.Large {
		forwardOpen = "Large Forward Open"
	}
	return []row{
		{"State", info.State.String()},
		{"Service", forwardOpen},
		{"Maximum size", fmt.Sprintf("%d bytes", info.MaximumSize)},
		{"O->T connection ID", fmt.Sprintf("0x%08X", info.OToTConnectionID)},
		{"T->O connection ID", fmt.Sprintf("0x%08X", info.TToOConnectionID)},
		{"Connection serial", fmt.Sprintf("0x%04X", info.ConnectionSerial)},
		{"Vendor / originator", fmt.Sprintf("%d / 0x%08X", info.VendorID, info.OriginatorSerial)},
		{"O->T API", fmt.Sprintf("%d us", info.OToTAPI)},
		{"T->O API", fmt.Sprintf("%d us", info.TToOAPI)},
		{"Timeout", info.Timeout.String()},
	}
}
