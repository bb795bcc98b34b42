package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the dependency cache",
	}
	cmd.AddCommand(c.newCacheInfoCmd())
	cmd.AddCommand(c.newCacheCleanCmd())
	return cmd
}

func (c *CLI) newCacheInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "List stored cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			info, err := c.app.CacheInfo(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			if len(info.Entries) == 0 {
				_, _ = fmt.Fprintln(out, "cache is empty")
				return nil
			}
			for _, e := range info.Entries {
				_, _ = fmt.Fprintf(out, "%s  %s  %s\n",
					e.Key, formatSize(e.Size), e.CreatedAt.Format(time.DateTime))
			}
			_, _ = fmt.Fprintf(out, "total: %d entries, %s\n", len(info.Entries), formatSize(info.TotalSize))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print cache info as JSON")
	return cmd
}

func (c *CLI) newCacheCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove all stored cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			freed, err := c.app.CacheClean(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "freed %s\n", formatSize(freed))
			return nil
		},
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
