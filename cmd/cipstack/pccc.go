package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/cip/pccc"
)

func newPCCCCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pccc",
		Short: "Tunnel PCCC commands to an SLC/PLC-5 class processor",
		Long: `Sends PCCC commands through the PCCC object (class 0x67) with Execute PCCC.
Addresses use data table notation such as N7:0, F8:2, B3:1/4 or T4:0.ACC.`,
	}
	cmd.AddCommand(newPCCCReadCmd(flags))
	cmd.AddCommand(newPCCCWriteCmd(flags))
	cmd.AddCommand(newPCCCEchoCmd(flags))
	return cmd
}

func withPCCC(cmd *cobra.Command, flags *globalFlags, fn func(*pccc.Layer, *stack) error) error {
	ctx := context.Background()
	s, err := openStack(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	return wrapOperationError("pccc "+cmd.Name(), fn(pccc.New(s.conn, s.cfg.ToPCCCOptions(), s.log), s))
}

func newPCCCReadCmd(flags *globalFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:     "read <address>",
		Short:   "Read data table elements with a protected typed logical read",
		Example: "  cipstack pccc read N7:0 --count 4 --ip 10.0.0.60",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := args[0]
			if _, err := pccc.ParseAddress(address); err != nil {
				return err
			}
			return withPCCC(cmd, flags, func(l *pccc.Layer, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				data, err := l.ReadTyped(ctx, address, count)
				if err != nil {
					return err
				}
				renderPanel(cmd.OutOrStdout(), "PCCC read "+strings.ToUpper(address), []row{
					{"Bytes", fmt.Sprintf("%d", len(data))},
					{"Data", hexBytes(data)},
				})
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of elements to read")
	return cmd
}

func newPCCCWriteCmd(flags *globalFlags) *cobra.Command {
	var dataHex string
	cmd := &cobra.Command{
		Use:     "write <address>",
		Short:   "Write raw element bytes with a protected typed logical write",
		Example: "  cipstack pccc write N7:0 --data 2A00 --ip 10.0.0.60",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataHex == "" {
				return missingFlagError(cmd, "--data")
			}
			data, err := parseHex(dataHex)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}
			address := args[0]
			if _, err := pccc.ParseAddress(address); err != nil {
				return err
			}
			return withPCCC(cmd, flags, func(l *pccc.Layer, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				if err := l.WriteTyped(ctx, address, data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), strings.ToUpper(address))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataHex, "data", "", "Little-endian element bytes as hex (required)")
	return cmd
}

func newPCCCEchoCmd(flags *globalFlags) *cobra.Command {
	var dataHex string
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Send a diagnostic echo and print what comes back",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			payload, err := parseHex(dataHex)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}
			return withPCCC(cmd, flags, func(l *pccc.Layer, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				reply, err := l.Echo(ctx, payload)
				if err != nil {
					return err
				}
				renderPanel(cmd.OutOrStdout(), "PCCC echo", []row{
					{"Sent", hexBytes(payload)},
					{"Received", hexBytes(reply)},
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataHex, "data", "00010203", "Echo payload as hex")
	return cmd
}

// parseHex accepts hex with optional spaces, colons or a 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	return hex.DecodeString(s)
}
