package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/cip/client"
	"github.com/tturner/cipstack/internal/cip/object"
)

func newPortCmd(flags *globalFlags) *cobra.Command {
	var instanceStr string

	cmd := &cobra.Command{
		Use:   "port",
		Short: "Read Port object attributes",
		Long: `Reads the Port class entry port attribute and all attributes of one Port
instance: port type, number, link path and name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			instance, err := parseUint(instanceStr, 32)
			if err != nil {
				return fmt.Errorf("invalid instance: %w", err)
			}
			return withClient(cmd, flags, func(c *client.Client, s *stack) error {
				ctx, cancel := operationContext(s.cfg)
				defer cancel()
				out := cmd.OutOrStdout()
				if entry, err := c.PortClassAttribute(ctx, object.PortClassEntryPort); err == nil {
					renderPanel(out, "Port class", []row{{entry.Name, fmt.Sprintf("%v", entry.Value)}})
				} else {
					renderError(out, "entry port", err)
				}
				values, err := c.PortInstanceAttributesAll(ctx, uint32(instance))
				if err != nil {
					return err
				}
				rows := make([]row, 0, len(values))
				for _, v := range values {
					rows = append(rows, row{v.Name, fmt.Sprintf("%v", v.Value)})
				}
				renderPanel(out, fmt.Sprintf("Port instance %d", instance), rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instanceStr, "instance", "1", "Port instance ID")
	return cmd
}
