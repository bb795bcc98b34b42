package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/gantry/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [workflow...]",
		Short: "Run workflows triggered by pushing the current head",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptionsFromFlags(cmd)
			opts.Workflows = args
			return c.app.Run(cmd.Context(), opts)
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Print the execution plan without running it")
	return cmd
}

// addRunFlags registers the flags shared between run and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("ref", "", "Override the push ref (e.g. refs/heads/main)")
	cmd.Flags().String("sha", "", "Override the push commit SHA")
	cmd.Flags().String("branch", "", "Override the push branch (shorthand for --ref refs/heads/<branch>)")
	cmd.Flags().String("actor", "", "Override the push actor")
	cmd.Flags().IntP("parallelism", "p", 0, "Maximum concurrent job instances (0 means one per CPU)")
	cmd.Flags().String("emit", app.EmitNone, "Event stream mode: ndjson or none")
	cmd.Flags().String("emit-file", "", "Write the NDJSON event stream to a file")
	cmd.Flags().Bool("report-status", false, "Report a commit status per executed workflow")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass dependency cache restores and saves")
	cmd.Flags().Duration("max-event-age", 0, "Fail when the head commit is older than this (0 disables)")
}

func runOptionsFromFlags(cmd *cobra.Command) app.RunOptions {
	workspace, _ := cmd.Flags().GetString("workspace")
	ref, _ := cmd.Flags().GetString("ref")
	sha, _ := cmd.Flags().GetString("sha")
	branch, _ := cmd.Flags().GetString("branch")
	actor, _ := cmd.Flags().GetString("actor")
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	emit, _ := cmd.Flags().GetString("emit")
	emitFile, _ := cmd.Flags().GetString("emit-file")
	reportStatus, _ := cmd.Flags().GetBool("report-status")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	maxEventAge, _ := cmd.Flags().GetDuration("max-event-age")

	return app.RunOptions{
		Workspace:    workspace,
		Ref:          ref,
		SHA:          sha,
		Branch:       branch,
		Actor:        actor,
		Parallelism:  parallelism,
		Emit:         emit,
		EmitFile:     emitFile,
		ReportStatus: reportStatus,
		NoCache:      noCache,
		DryRun:       dryRun,
		MaxEventAge:  maxEventAge,
	}
}
