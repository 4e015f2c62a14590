package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/cip/client"
	"github.com/tturner/cipstack/internal/cip/object"
)

func newIdentityCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Read the Identity object of the target",
		Long: `Reads Identity instance 1 with Get_Attributes_All and prints vendor, device
type, product, revision, status and serial number.`,
		Example: "  cipstack identity --ip 10.0.0.50",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withClient(cmd, flags, func(c *client.Client, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				info, err := c.Identity(ctx)
				if err != nil {
					return err
				}
				renderPanel(cmd.OutOrStdout(), "Identity "+s.cfg.Address(), identityRows(info))
				return nil
			})
		},
	}
}

func identityRows(info object.IdentityInfo) []row {
	rows := []row{
		{"Vendor ID", strconv.Itoa(int(info.VendorID))},
		{"Device type", info.DeviceType.String()},
		{"Product code", strconv.Itoa(int(info.ProductCode))},
		{"Revision", info.Revision.String()},
		{"Status", info.Status.String()},
		{"Serial number", fmt.Sprintf("0x%08X", info.SerialNumber)},
		{"Product name", info.ProductName},
	}
	if info.State != nil {
		rows = append(rows, row{"State", info.State.String()})
	}
	return rows
}

// withClient opens a stack, binds a client to it and always tears the stack
// down afterwards.
func withClient(cmd *cobra.Command, flags *globalFlags, fn func(*client.Client, *stack) error) error {
	ctx := context.Background()
	s, err := openStack(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	c := client.New(s.conn, client.Options{Connected: s.cfg.Target.Connected, Metrics: s.metrics}, s.log)
	err = fn(c, s)
	s.printMetrics(cmd.OutOrStdout())
	return wrapOperationError(cmd.Name(), err)
}
