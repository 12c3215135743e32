package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hytopiagg/world-editor-sub010/internal/catalog"
)

var cmdRuns = &cobra.Command{
	Use:   "runs [flags]",
	Short: "List recorded import runs",
	Long: `
The "runs" command lists imports recorded in a snapshot store's catalog,
newest first.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunRuns(cmd.Context(), runsOptions)
	},
}

// RunsOptions bundles all options for the runs command.
type RunsOptions struct {
	Store string
	World string
}

var runsOptions RunsOptions

func init() {
	cmdRoot.AddCommand(cmdRuns)

	f := cmdRuns.Flags()
	f.StringVar(&runsOptions.Store, "store", "", "snapshot store directory holding the catalog")
	f.StringVar(&runsOptions.World, "world", "", "only list runs of this world")
	cmdRuns.MarkFlagRequired("store")
}

func RunRuns(ctx context.Context, opts RunsOptions) error {
	cat, err := catalog.Open(ctx, filepath.Join(opts.Store, "catalog.db"))
	if err != nil {
		return err
	}
	defer cat.Close()

	runs, err := cat.ListRuns(ctx, opts.World)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%-4d %-20s %s  %8d blocks  %4d regions  %v  %s\n",
			run.ID, run.World, run.SnapshotID[:8], run.Blocks, run.Regions,
			run.Duration.Round(time.Millisecond), run.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
