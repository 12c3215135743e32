package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hytopiagg/world-editor-sub010/internal/anvil"
	"github.com/hytopiagg/world-editor-sub010/internal/importer"
	"github.com/hytopiagg/world-editor-sub010/internal/worldsave"
)

var cmdScan = &cobra.Command{
	Use:   "scan [flags] WORLD",
	Short: "Scan a world save without decoding blocks",
	Long: `
The "scan" command enumerates a world save's region files and reports the
region grid bounds, the total size on disk and the world's data version.
No blocks are materialized; use it to judge a world before importing.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunScan(cmd.Context(), args[0])
	},
}

func init() {
	cmdRoot.AddCommand(cmdScan)
}

func RunScan(ctx context.Context, path string) error {
	save, err := worldsave.Open(ctx, path)
	if err != nil {
		return err
	}
	defer save.Close()

	orch := importer.New(save, anvil.NewDecoder(), importer.WithProgress(logProgress))
	info, err := orch.ScanWorldSize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("world:    %s\n", save.Name())
	fmt.Printf("regions:  %d\n", info.RegionCount)
	fmt.Printf("bounds:   x [%d, %d] z [%d, %d]\n",
		info.Bounds.MinX, info.Bounds.MaxX, info.Bounds.MinZ, info.Bounds.MaxZ)
	fmt.Printf("size:     %.1f MiB\n", float64(info.TotalBytes)/(1<<20))
	fmt.Printf("version:  %s\n", info.Version)
	if !info.Version.Supported() {
		fmt.Println("warning:  version below supported minimum, import will fail")
	}
	return nil
}

func logProgress(rep importer.ProgressReport) {
	fields := log.Fields{"percent": rep.Percent}
	if rep.Memory != nil {
		fields["memory_mb"] = rep.Memory.UsedMB
	}
	log.WithFields(fields).Info(rep.Message)
}
