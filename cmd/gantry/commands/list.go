package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows, their triggers, and their jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspace, _ := cmd.Flags().GetString("workspace")
			asJSON, _ := cmd.Flags().GetBool("json")

			summaries, err := c.app.List(cmd.Context(), workspace)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			for _, wf := range summaries {
				_, _ = fmt.Fprintf(out, "%s (%s)\n", wf.Name, wf.Source)
				if len(wf.Branches) > 0 {
					_, _ = fmt.Fprintf(out, "  on push branches: %s\n", strings.Join(wf.Branches, ", "))
				}
				if len(wf.Tags) > 0 {
					_, _ = fmt.Fprintf(out, "  on push tags: %s\n", strings.Join(wf.Tags, ", "))
				}
				for _, job := range wf.Jobs {
					_, _ = fmt.Fprintf(out, "  %s (%d steps", job.ID, job.Steps)
					if job.Instances > 1 {
						_, _ = fmt.Fprintf(out, ", %d instances", job.Instances)
					}
					if len(job.Needs) > 0 {
						_, _ = fmt.Fprintf(out, ", needs: %s", strings.Join(job.Needs, ", "))
					}
					_, _ = fmt.Fprintln(out, ")")
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the workflow list as JSON")
	return cmd
}
