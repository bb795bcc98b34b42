package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [workflow...]",
		Short: "Run workflows, then rerun them whenever workspace files change",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptionsFromFlags(cmd)
			opts.Workflows = args
			return c.app.Watch(cmd.Context(), opts)
		},
	}
	addRunFlags(cmd)
	return cmd
}
