package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/cip/client"
	"github.com/tturner/cipstack/internal/cip/spec"
)

func newClassesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the object classes the target's Message Router supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withClient(cmd, flags, func(c *client.Client, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				classes, err := c.SupportedClasses(ctx)
				if err != nil {
					return err
				}
				renderPanel(cmd.OutOrStdout(), fmt.Sprintf("Supported classes (%d)", len(classes)), classRows(classes))
				return nil
			})
		},
	}
}

func classRows(classes []uint16) []row {
	rows := make([]row, 0, len(classes))
	for _, class := range classes {
		rows = append(rows, row{fmt.Sprintf("0x%02X", class), spec.ClassName(spec.ClassCode(class))})
	}
	return rows
}

func newRouterCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "router",
		Short: "Read Message Router instance attributes",
		Long: `Reads Message Router instance 1 with Get_Attributes_All: the supported object
list, the maximum number of connections and the active connection IDs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withClient(cmd, flags, func(c *client.Client, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				info, err := c.MessageRouterInstanceAttributes(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				maxConns := "not reported"
				if info.MaximumConnections != nil {
					maxConns = fmt.Sprintf("%d", *info.MaximumConnections)
				}
				renderPanel(out, "Message Router", []row{
					{"Maximum connections", maxConns},
					{"Active connections", fmt.Sprintf("%v", info.Connections)},
				})
				renderPanel(out, fmt.Sprintf("Object list (%d)", len(info.Classes)), classRows(info.Classes))
				return nil
			})
		},
	}
}
